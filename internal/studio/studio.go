// Package studio carries the page-script set for the creator studio
// frontend. The rotation core is selector-agnostic: every DOM heuristic —
// the denial-page predicate, the identity probe, the account-picker
// interactions — lives here as an injectable script, so the core can run
// against a fake driver in tests and survive frontend markup churn with a
// one-package change.
package studio

import "fmt"

// Frontend is one frontend's script set. Each script is a JS function
// expression evaluated via Driver.Eval; parametrized scripts carry a
// format verb and are rendered by the helper methods below.
type Frontend struct {
	// DeniedProbe returns true when the current page is the
	// permission-denial ("oops") page.
	DeniedProbe string

	// IdentityProbe returns the channel ID the page currently operates
	// as, or "" when it cannot tell.
	IdentityProbe string

	// OpenAccountMenu clicks the avatar menu open; returns true on success.
	OpenAccountMenu string

	// OpenSwitcher clicks the "switch account" menu entry; returns true
	// on success.
	OpenSwitcher string

	// DeniedSwitch clicks the denial page's own switch-account
	// affordance, the shortcut route into the picker; returns true on
	// success.
	DeniedSwitch string

	// PickerEntries returns the visible text of each account-picker
	// entry, in rendered order.
	PickerEntries string

	// ClickPickerEntry clicks the picker entry at an index (one %d verb);
	// returns true when the index exists.
	ClickPickerEntry string

	// PendingUnits returns how many work units the current channel's
	// inbox still shows.
	PendingUnits string

	// EngagePending works through the visible pending units and returns
	// {processed, done}.
	EngagePending string

	// DestinationURL builds a channel's canonical work page (one %s verb
	// for the display ID).
	DestinationURL string
}

// ClickPickerEntryScript renders the picker click script for an index.
func (f Frontend) ClickPickerEntryScript(index int) string {
	return fmt.Sprintf(f.ClickPickerEntry, index)
}

// ChannelURL builds the canonical destination for a channel's work.
func (f Frontend) ChannelURL(displayID string) string {
	return fmt.Sprintf(f.DestinationURL, displayID)
}

// Default returns the stock studio frontend scripts.
func Default() Frontend {
	return Frontend{
		DeniedProbe: `() => {
			const text = document.body ? document.body.innerText : "";
			return /oops|something went wrong|you don't have (access|permission)|isn't available/i.test(text);
		}`,
		IdentityProbe: `() => {
			const m = location.href.match(/channel\/(UC[\w-]+)/);
			if (m) return m[1];
			const meta = document.querySelector('meta[itemprop="channelId"]');
			return meta ? meta.content : "";
		}`,
		OpenAccountMenu: `() => {
			const btn = document.querySelector('#avatar-btn, button[aria-label*="account" i]');
			if (!btn) return false;
			btn.click();
			return true;
		}`,
		OpenSwitcher: `() => {
			const items = Array.from(document.querySelectorAll('yt-multi-page-menu-section-renderer a, tp-yt-paper-item, a[href*="switch"]'));
			const item = items.find(e => /switch account/i.test(e.innerText || ""));
			if (!item) return false;
			item.click();
			return true;
		}`,
		DeniedSwitch: `() => {
			const links = Array.from(document.querySelectorAll('a, button, yt-button-renderer'));
			const link = links.find(e => /switch account/i.test(e.innerText || ""));
			if (!link) return false;
			link.click();
			return true;
		}`,
		PickerEntries: `() => {
			const entries = Array.from(document.querySelectorAll('ytd-account-item-renderer, [role="link"][class*="account"]'));
			return entries.map(e => (e.innerText || "").trim()).filter(t => t.length > 0);
		}`,
		ClickPickerEntry: `() => {
			const entries = Array.from(document.querySelectorAll('ytd-account-item-renderer, [role="link"][class*="account"]'));
			const i = %d;
			if (i < 0 || i >= entries.length) return false;
			entries[i].click();
			return true;
		}`,
		PendingUnits: `() => {
			const rows = document.querySelectorAll('ytcp-comment-thread:not([resolved])');
			return rows.length;
		}`,
		EngagePending: `() => {
			const rows = Array.from(document.querySelectorAll('ytcp-comment-thread:not([resolved])'));
			let processed = 0;
			for (const row of rows) {
				const btn = row.querySelector('#like-button, ytcp-comment-creator-heart');
				if (!btn) continue;
				btn.click();
				row.setAttribute('resolved', '');
				processed++;
			}
			const remaining = document.querySelectorAll('ytcp-comment-thread:not([resolved])').length;
			return { processed: processed, done: remaining === 0 };
		}`,
		DestinationURL: "https://studio.youtube.com/channel/%s/comments/inbox",
	}
}

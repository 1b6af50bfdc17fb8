// Package input decodes raw terminal chunks into key events and manages
// per-listener raw-mode subscriptions on a terminal.ByteSource.
//
// Decode is pure: one chunk in, one KeyEvent out, no state between calls.
// A pasted string arrives as a single chunk and is decoded as one event.
//
// A Manager drives the raw-mode switch on behalf of its subscriptions. Each
// Subscription attaches a listener to the source only while active; Close
// detaches it and restores cooked mode once no sibling subscription is active.
// Sources implementing terminal.SharedRawMode count holders themselves, so
// siblings from separate RegisterInput calls share raw mode too.
//
//	sub, err := input.RegisterInput(src, func(text string, ev input.KeyEvent) {
//		if ev.Ctrl() && text == "c" {
//			quit()
//		}
//	})
//	if err != nil {
//		return err
//	}
//	defer sub.Close()
package input

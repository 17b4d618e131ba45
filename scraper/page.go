package scraper

import "context"

// Node is an element on the rendering target. Any method may fail with
// ErrTransient once the page re-renders underneath the handle.
type Node interface {
	// Find returns the descendants matching selector, in document order.
	Find(selector string) ([]Node, error)
	// Text returns the visible text of the element.
	Text() (string, error)
	// Attribute returns the named attribute, or "" when it is absent.
	Attribute(name string) (string, error)
	IsDisplayed() (bool, error)
	IsInteractable() (bool, error)
}

// Page is the rendering target a run drives. It is not safe for concurrent
// use.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// FindAll returns the elements matching selector, in document order.
	FindAll(selector string) ([]Node, error)
	ScrollIntoView(node Node) error
	// Activate clicks node the way a user would.
	Activate(node Node) error
	// ActivateScript clicks node from page script, bypassing overlays.
	ActivateScript(node Node) error
}

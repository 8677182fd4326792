package ports

// Navigator is the presentation collaborator that owns routing.
type Navigator interface {
	// NavigateHome returns the user to the application's entry point.
	NavigateHome()
}

// NavigatorFunc adapts a plain function to Navigator.
type NavigatorFunc func()

// NavigateHome calls f.
func (f NavigatorFunc) NavigateHome() { f() }

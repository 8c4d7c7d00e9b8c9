package config

// Section is one named group of settings persisted under its ID.
type Section interface {
	ID() string
	Title() string
	Description() string

	// Data returns the section's settings as plain values for persistence.
	Data() map[string]any
	// SetData applies persisted settings. Unknown or mistyped keys are ignored.
	SetData(data map[string]any) error

	Validate() error
	Reset()
}

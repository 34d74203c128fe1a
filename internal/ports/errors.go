package ports

// Sentinel errors shared by repository adapters and their callers.
var (
	ErrNotFound        = errString("not found")
	ErrSessionConflict = errString("session was modified concurrently")
	ErrFolderNotMapped = errString("folder structure not found")
)

type errString string

func (e errString) Error() string { return string(e) }

// UserActionRequiredError marks a scoring failure the user must fix
// themselves (e.g. an image-only deck the provider cannot parse). Callers
// treat it like a validator rejection, not a transport failure.
type UserActionRequiredError struct {
	Msg string
}

func (e *UserActionRequiredError) Error() string { return e.Msg }

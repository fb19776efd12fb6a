package manager

// invalidRequestError signals a request the glue refused before touching
// any external tool (empty prompt, malformed model id, unknown quant).
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return e.msg }

// ErrInvalidRequest constructs an invalidRequestError.
func ErrInvalidRequest(msg string) error { return invalidRequestError{msg: msg} }

// IsInvalidRequest reports whether err should map to 400.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}

// modelNotFoundError signals a missing artifact path or an upstream
// model the converter could not find.
type modelNotFoundError struct{ msg string }

func (e modelNotFoundError) Error() string { return e.msg }

// ErrModelNotFound constructs a modelNotFoundError.
func ErrModelNotFound(msg string) error { return modelNotFoundError{msg: msg} }

// IsModelNotFound reports whether err should map to 404.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// alreadyExistsError signals that the conversion output directory is taken.
type alreadyExistsError struct{ path string }

func (e alreadyExistsError) Error() string {
	return "output directory already exists: " + e.path + "; choose a different name or delete it"
}

// ErrAlreadyExists returns an error indicating the output path is taken.
func ErrAlreadyExists(path string) error { return alreadyExistsError{path: path} }

// IsAlreadyExists reports whether err should map to 409.
func IsAlreadyExists(err error) bool {
	_, ok := err.(alreadyExistsError)
	return ok
}

// tooBusyError signals queue timeout/overflow or a concurrent conversion
// for 429 mapping.
type tooBusyError struct{ what string }

func (e tooBusyError) Error() string { return "too busy: " + e.what }

// ErrTooBusy returns a backpressure error naming the saturated resource.
func ErrTooBusy(what string) error { return tooBusyError{what: what} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// diskSpaceError signals that the preflight check (or the converter
// itself) found too little free disk for a conversion.
type diskSpaceError struct{ msg string }

func (e diskSpaceError) Error() string { return e.msg }

// ErrDiskSpace returns an error indicating insufficient free disk.
func ErrDiskSpace(msg string) error { return diskSpaceError{msg: msg} }

// IsDiskSpace reports whether err should map to 507.
func IsDiskSpace(err error) bool {
	_, ok := err.(diskSpaceError)
	return ok
}

// dependencyUnavailableError signals a missing external tool (the
// converter or server binary) so the HTTP layer can return 503 instead
// of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed
// external dependency.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}

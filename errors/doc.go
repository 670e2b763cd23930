/*
Package errors provides semantic error types for the data director.

The taxonomy separates outcomes callers must treat differently:

	var (
	    ErrNotFound           = errors.New("entity not found")
	    ErrAlreadyExists      = errors.New("entity already exists")
	    ErrInvalidInput       = errors.New("invalid input")
	    ErrBackend            = errors.New("backend failure")
	    ErrUnavailable        = errors.New("record unavailable")
	    ErrAllocatorExhausted = errors.New("uid allocator exhausted")
	    ErrNoIndexMap         = errors.New("no index map found for type")
	)

Backends report a missing entity with NotFoundError. The cache turns that
into an unavailable record rather than an error, while any other backend
problem reaches the caller as a BackendError:

	record, err := director.GetCharacter(ctx, uid)
	if err != nil {
	    if errors.IsBackendFailure(err) {
	        // internal error response, never forward err to the client
	    }
	    return err
	}
	if !record.IsAvailable() {
	    // character does not exist
	}

All types support wrapping and are compatible with the standard errors.Is.
*/
package errors

package reactive

// Package-level hook helpers. These resolve against the current owner set by
// WithOwner, so hook implementations don't have to thread the owner through
// every call site.

// TrackHook records a hook call on the current owner for dev-mode order
// validation. No-op when no owner scope is active.
func TrackHook(ht HookType) {
	if owner := getCurrentOwner(); owner != nil {
		owner.TrackHook(ht)
	}
}

// UseHookSlot returns the stored value for the current hook slot of the
// current owner, or nil on first render (or when no owner is active).
func UseHookSlot() any {
	if owner := getCurrentOwner(); owner != nil {
		return owner.UseHookSlot()
	}
	return nil
}

// SetHookSlot stores a value in the current hook slot of the current owner.
// No-op when no owner scope is active; the hook then gets a fresh instance
// per call, which is the documented behavior outside a session scope.
func SetHookSlot(value any) {
	if owner := getCurrentOwner(); owner != nil {
		owner.SetHookSlot(value)
	}
}

// SetContext sets a context value for the current owner scope.
// The value is visible to all descendant scopes via GetContext.
func SetContext(key, value any) {
	if owner := getCurrentOwner(); owner != nil {
		owner.SetValue(key, value)
	}
}

// GetContext retrieves a context value from the nearest provider in the
// owner hierarchy. Returns nil if no value is found or no scope is active.
func GetContext(key any) any {
	if owner := getCurrentOwner(); owner != nil {
		return owner.GetValue(key)
	}
	return nil
}

// CurrentOwner returns the owner for the active scope, or nil.
func CurrentOwner() *Owner {
	return getCurrentOwner()
}

package utils

import "fmt"

// WrapPutError returns a wrapped put error
func WrapPutError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("put error: %w", err)
}

// WrapGetError returns a wrapped get error
func WrapGetError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("get error: %w", err)
}

// WrapDeleteError returns a wrapped delete error
func WrapDeleteError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("delete error: %w", err)
}

// WrapStatError returns a wrapped stat error
func WrapStatError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("stat error: %w", err)
}

// WrapExistsError returns a wrapped exists error
func WrapExistsError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("exists error: %w", err)
}

// WrapListError returns a wrapped list error
func WrapListError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("list error: %w", err)
}

// WrapSignError returns a wrapped signed-url error
func WrapSignError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("sign error: %w", err)
}

// WrapProbeError returns a wrapped probe error
func WrapProbeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("probe error: %w", err)
}

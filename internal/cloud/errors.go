package cloud

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCatalog = errors.New("invalid vm catalog")
	ErrUnknownVM      = errors.New("vm not in pool")
)

// CatalogError wraps catalog and pool validation failures.
type CatalogError struct {
	Kind error
	Msg  string
}

func (e *CatalogError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *CatalogError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &CatalogError{Kind: ErrInvalidCatalog, Msg: fmt.Sprintf(format, args...)}
}

package service

import "fmt"

// ValidationError reports malformed input.  It is raised before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InUseError blocks a delete while dependent rows exist.
type InUseError struct {
	Entity    string // e.g. "currency"
	ID        uint64
	Dependent string // e.g. "product variants"
	Count     int64
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%s %d is used by %d %s", e.Entity, e.ID, e.Count, e.Dependent)
}

// PivotProtectedError blocks deleting the pivot currency.
type PivotProtectedError struct {
	CurrencyID uint64
}

func (e *PivotProtectedError) Error() string {
	return fmt.Sprintf("currency %d is the pivot; choose another pivot first", e.CurrencyID)
}

// AssignmentLockedError blocks changing an assignment that has products.
type AssignmentLockedError struct {
	EventID    uint64
	MallID     uint64
	BoutiqueID uint64
}

func (e *AssignmentLockedError) Error() string {
	return fmt.Sprintf("assignment for boutique %d in event %d mall %d is locked by existing products",
		e.BoutiqueID, e.EventID, e.MallID)
}

// DesignerAlreadyAssignedError reports a designer already placed in another
// boutique of the same event and mall.
type DesignerAlreadyAssignedError struct {
	DesignerID uint64
	BoutiqueID uint64 // the boutique currently holding the designer
}

func (e *DesignerAlreadyAssignedError) Error() string {
	return fmt.Sprintf("designer %d is already assigned to boutique %d in this event and mall",
		e.DesignerID, e.BoutiqueID)
}

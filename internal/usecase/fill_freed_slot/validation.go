package fill_freed_slot

import "fmt"

// validateRequest проверяет корректность описания слота
func validateRequest(req *Request) error {
	if req.Slot == nil {
		return fmt.Errorf("%w: slot is required", ErrInvalidInput)
	}

	slot := req.Slot

	if slot.CompanyID <= 0 {
		return fmt.Errorf("%w: companyID must be positive", ErrInvalidInput)
	}

	if slot.SpecialistID <= 0 {
		return fmt.Errorf("%w: specialistID must be positive", ErrInvalidInput)
	}

	if slot.ServiceID <= 0 {
		return fmt.Errorf("%w: serviceID must be positive", ErrInvalidInput)
	}

	if slot.StartAt.IsZero() || slot.EndAt.IsZero() {
		return fmt.Errorf("%w: slot window is required", ErrInvalidInput)
	}

	if !slot.EndAt.After(slot.StartAt) {
		return fmt.Errorf("%w: slot end must be after start", ErrInvalidInput)
	}

	return nil
}

package domain

// TenancyPolicy carries the configurable lease lifecycle choices.
type TenancyPolicy struct {
	// AutoRenew extends an Active lease past its EndDate by its original term
	// instead of expiring it.
	AutoRenew bool
	// HoldUnitUntilSettled keeps the unit Rented after a lease ends until its
	// balance is paid off, and lets settlement payments post to the ended lease.
	// When false the unit is released as soon as the lease ends.
	HoldUnitUntilSettled bool
}

package repository

// Models lists the tables owned by this package, for AutoMigrate.
func Models() []any {
	return []any{&carModel{}, &bookingModel{}, &paymentModel{}}
}

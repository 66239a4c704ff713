package models

// All returns every persisted model, in dependency order, for schema migration.
func All() []interface{} {
	return []interface{}{
		&User{},
		&PointTransaction{},
		&Question{},
		&CheckIn{},
		&Prediction{},
		&UserPrediction{},
		&Referral{},
		&Feedback{},
	}
}

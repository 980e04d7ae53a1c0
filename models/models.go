package models

// All returns every persisted entity in migration order
func All() []any {
	return []any{
		&User{},
		&Lead{},
		&CallHistory{},
		&PasswordResetToken{},
		&AuditLog{},
	}
}

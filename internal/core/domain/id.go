package domain

import "github.com/google/uuid"

// NewID génère l'identité d'une entité. L'ID est créé dans le domaine, jamais par la base.
func NewID() string {
	return uuid.NewString()
}

// ValidateID rejette tout identifiant qui n'est pas un UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}

// ValidateIDs valide plusieurs identifiants d'un coup.
func ValidateIDs(ids ...string) error {
	for _, id := range ids {
		if err := ValidateID(id); err != nil {
			return err
		}
	}
	return nil
}

package types

import "time"

// Patient is the identifying record the access core reads for policy
// decisions. The full clinical record is owned by the patient CRUD layer;
// only the fields surfaced in access responses live here.
type Patient struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Age            int       `json:"age" db:"age"`
	Diagnosis      string    `json:"diagnosis" db:"diagnosis"`
	Treatment      string    `json:"treatment,omitempty" db:"treatment"`
	AssignedDoctor string    `json:"assigned_doctor,omitempty" db:"assigned_doctor"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Snapshot returns the subset of patient data returned on a granted access.
func (p *Patient) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"id":        p.ID,
		"name":      p.Name,
		"age":       p.Age,
		"diagnosis": p.Diagnosis,
	}
}

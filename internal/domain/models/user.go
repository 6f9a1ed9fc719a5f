// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles relevant to hiring committees.
const (
	RoleAdmin          = "admin"
	RoleHRManager      = "hr_manager"
	RoleHiringManager  = "hiring_manager"
	RoleInterviewer    = "interviewer"
	RoleTechnicalLead  = "technical_lead"
	RoleDepartmentHead = "department_head"
)

// User is an internal portal user (operator or reviewer).
//
// NOTE:
//   - Email is stored normalized (trimmed, lowercase) and is the join key
//     between committee members and submitted feedback records.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`
	Role       string             `bson:"role" json:"role"`
	Department string             `bson:"department,omitempty" json:"department,omitempty"`
	Status     string             `bson:"status,omitempty" json:"status,omitempty"` // active | disabled

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

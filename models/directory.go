package models

import "time"

// The account tables below are owned by the scheduling/account service.
// This module reads them for display metadata only and never writes them.

type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Kind      string    `gorm:"not null" json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

type Employer struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	FirstName      string  `gorm:"type:varchar(50);not null" json:"first_name"`
	LastName       string  `gorm:"type:varchar(50);not null" json:"last_name"`
	Email          string  `gorm:"uniqueIndex;not null" json:"email"`
	PhoneNumber    string  `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone_number"`
	Username       string  `gorm:"uniqueIndex;not null" json:"username"`
	ProfilePicture *string `json:"profile_picture"`
	CompanyID      uint    `gorm:"not null" json:"company_id"`
}

type Employee struct {
	ID             uint     `gorm:"primaryKey" json:"id"`
	FirstName      string   `gorm:"type:varchar(50);not null" json:"first_name"`
	LastName       string   `gorm:"type:varchar(50);not null" json:"last_name"`
	Email          string   `gorm:"uniqueIndex;not null" json:"email"`
	PhoneNumber    string   `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone_number"`
	Username       string   `gorm:"uniqueIndex;not null" json:"username"`
	ProfilePicture *string  `json:"profile_picture"`
	EmployerID     uint     `gorm:"not null;index" json:"employer_id"`
	Employer       Employer `gorm:"foreignKey:EmployerID" json:"-"`
}

func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

func (e *Employer) FullName() string {
	return e.FirstName + " " + e.LastName
}

// DirectoryEntry is the resolved display metadata for an identity, used to
// label typing events and populate the team roster.
type DirectoryEntry struct {
	Identity       Identity `json:"identity"`
	DisplayName    string   `json:"display_name"`
	ProfilePicture string   `json:"profile_picture"`
}

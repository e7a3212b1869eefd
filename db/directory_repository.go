package db

import (
	"github.com/pkg/errors"
	"github.com/staffhive/teamchat/models"
	"gorm.io/gorm"
)

// DirectoryRepository resolves employee and employer records to display
// metadata. The account tables are owned by the scheduling service; this is
// strictly read-only.
type DirectoryRepository interface {
	ResolveIdentity(identity models.Identity) (*models.DirectoryEntry, error)
	ListTeam(employeeID uint) ([]models.DirectoryEntry, error)
}

type directoryRepo struct {
	DB *gorm.DB
}

func NewDirectoryRepo(db *GormDB) DirectoryRepository {
	return &directoryRepo{db.DB}
}

func (r *directoryRepo) ResolveIdentity(identity models.Identity) (*models.DirectoryEntry, error) {
	switch identity.Kind {
	case models.IdentityEmployer:
		var employer models.Employer
		if err := r.DB.First(&employer, identity.ID).Error; err != nil {
			return nil, err
		}
		return &models.DirectoryEntry{
			Identity:       identity,
			DisplayName:    employer.FullName(),
			ProfilePicture: deref(employer.ProfilePicture),
		}, nil
	default:
		var employee models.Employee
		if err := r.DB.First(&employee, identity.ID).Error; err != nil {
			return nil, err
		}
		return &models.DirectoryEntry{
			Identity:       identity,
			DisplayName:    employee.FullName(),
			ProfilePicture: deref(employee.ProfilePicture),
		}, nil
	}
}

// ListTeam returns every employee connected to an employer, plus each
// distinct employer, excluding the requesting employee. This backs the
// new-conversation picker on the client.
func (r *directoryRepo) ListTeam(employeeID uint) ([]models.DirectoryEntry, error) {
	var employees []models.Employee
	err := r.DB.Preload("Employer").
		Where("employer_id IS NOT NULL").
		Find(&employees).Error
	if err != nil {
		return nil, errors.Wrap(err, "list team")
	}

	var team []models.DirectoryEntry
	seenEmployers := make(map[uint]bool)
	for _, emp := range employees {
		if emp.ID == employeeID {
			continue
		}
		team = append(team, models.DirectoryEntry{
			Identity:       models.Identity{Kind: models.IdentityEmployee, ID: emp.ID},
			DisplayName:    emp.FullName(),
			ProfilePicture: deref(emp.ProfilePicture),
		})
		if !seenEmployers[emp.EmployerID] {
			seenEmployers[emp.EmployerID] = true
			team = append(team, models.DirectoryEntry{
				Identity:       models.Identity{Kind: models.IdentityEmployer, ID: emp.EmployerID},
				DisplayName:    emp.Employer.FullName(),
				ProfilePicture: deref(emp.Employer.ProfilePicture),
			})
		}
	}
	return team, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

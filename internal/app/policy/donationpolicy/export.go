package donationpolicy

import (
	"fmt"

	"github.com/dalemusser/bloodhub/internal/domain/models"
)

// Dataset is a closed set of exportable data.
type Dataset int

const (
	DatasetUsers Dataset = iota + 1
	DatasetDonors
	DatasetDonationRequests
	DatasetFundings
	DatasetMyRequests
	DatasetMyFundings
)

// Datasets lists every dataset in menu order.
var Datasets = []Dataset{
	DatasetUsers,
	DatasetDonors,
	DatasetDonationRequests,
	DatasetFundings,
	DatasetMyRequests,
	DatasetMyFundings,
}

// Slug is the URL/file name of the dataset.
func (d Dataset) Slug() string {
	switch d {
	case DatasetUsers:
		return "users"
	case DatasetDonors:
		return "donors"
	case DatasetDonationRequests:
		return "donation-requests"
	case DatasetFundings:
		return "fundings"
	case DatasetMyRequests:
		return "my-requests"
	case DatasetMyFundings:
		return "my-fundings"
	}
	return ""
}

func (d Dataset) String() string { return d.Slug() }

// OwnData reports whether the dataset only contains the caller's records.
func (d Dataset) OwnData() bool {
	return d == DatasetMyRequests || d == DatasetMyFundings
}

// ParseDataset maps a slug back to a Dataset.
func ParseDataset(slug string) (Dataset, error) {
	for _, d := range Datasets {
		if d.Slug() == slug {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown dataset %q", slug)
}

// CanExport reports whether a may download dataset d.
//   - Admin: any dataset
//   - Volunteer: donor and donation-request data only
//   - Donor: own-data datasets only
func CanExport(a Actor, d Dataset) bool {
	if !CanUserPerformActions(a) {
		return false
	}
	switch a.Role {
	case models.RoleAdmin:
		return true
	case models.RoleVolunteer:
		return d == DatasetDonors || d == DatasetDonationRequests
	case models.RoleDonor:
		return d.OwnData()
	}
	return false
}

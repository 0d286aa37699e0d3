// internal/app/system/csvutil/tables.go
package csvutil

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/bloodhub/internal/domain/models"
)

// Table describes how one record type becomes CSV columns.
type Table[T any] struct {
	Header []string
	Row    func(T) []string
}

// Write emits the header and one line per row. Cells are escaped against
// spreadsheet formula injection.
func Write[T any](w io.Writer, t Table[T], rows []T) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	for _, r := range rows {
		cells := t.Row(r)
		for i, c := range cells {
			cells[i] = SafeCell(c)
		}
		if err := cw.Write(cells); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SafeCell prefixes values that a spreadsheet would evaluate as a formula.
func SafeCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Users is the admin user export. Password hashes are never included.
var Users = Table[models.User]{
	Header: []string{"id", "full_name", "email", "role", "status", "blood_group", "district", "upazila", "created_at"},
	Row: func(u models.User) []string {
		return []string{
			u.ID.Hex(), u.FullName, u.Email, string(u.Role), string(u.Status),
			string(u.BloodGroup), u.District, u.Upazila, ts(u.CreatedAt),
		}
	},
}

// Donors is the donor directory export.
var Donors = Table[models.User]{
	Header: []string{"full_name", "email", "blood_group", "district", "upazila", "last_donation_at"},
	Row: func(u models.User) []string {
		last := ""
		if u.LastDonationAt != nil {
			last = ts(*u.LastDonationAt)
		}
		return []string{u.FullName, u.Email, string(u.BloodGroup), u.District, u.Upazila, last}
	},
}

// DonationRequests is the request export.
var DonationRequests = Table[models.DonationRequest]{
	Header: []string{
		"id", "status", "blood_group", "recipient_name", "hospital", "address", "district", "upazila",
		"donation_at", "requester_name", "requester_email", "donor_name", "donor_email", "created_at",
	},
	Row: func(r models.DonationRequest) []string {
		var donorName, donorEmail string
		if r.Donor != nil {
			donorName, donorEmail = r.Donor.Name, r.Donor.Email
		}
		return []string{
			r.ID.Hex(), string(r.Status), string(r.BloodGroup), r.RecipientName, r.Hospital, r.Address,
			r.District, r.Upazila, ts(r.DonationAt), r.Requester.Name, r.Requester.Email,
			donorName, donorEmail, ts(r.CreatedAt),
		}
	},
}

// Fundings is the funding export. Anonymous fundings keep their donor
// identity here; only admins and the funder themselves can download it.
var Fundings = Table[models.Funding]{
	Header: []string{"transaction_id", "date", "donor_name", "donor_email", "amount", "currency", "payment_method", "status", "anonymous"},
	Row: func(f models.Funding) []string {
		return []string{
			f.TransactionID, ts(f.Date), f.DonorName, f.DonorEmail,
			strconv.FormatFloat(f.Amount, 'f', 2, 64), f.Currency, f.PaymentMethod,
			string(f.Status), strconv.FormatBool(f.Anonymous),
		}
	},
}

// Filename is the download name for a dataset slug on a given day.
func Filename(slug string, now time.Time) string {
	return "bloodhub-" + strings.ToLower(slug) + "-" + now.UTC().Format("20060102") + ".csv"
}

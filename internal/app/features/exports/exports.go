// internal/app/features/exports/exports.go
package exports

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	donationrequeststore "github.com/dalemusser/bloodhub/internal/app/store/donationrequests"
	fundingstore "github.com/dalemusser/bloodhub/internal/app/store/fundings"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/app/system/authz"
	"github.com/dalemusser/bloodhub/internal/app/system/csvutil"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/limits"
	"github.com/dalemusser/bloodhub/internal/app/system/paging"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// allRows is the single page every export reads.
var allRows = paging.Params{Page: 1, Limit: limits.MaxExportRows}

type datasetView struct {
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

// ServeIndex handles GET /exports: the datasets the caller may download.
func (h *Handler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	a, ok := authz.Actor(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r)
		return
	}
	out := []datasetView{}
	for _, d := range donationpolicy.Datasets {
		if donationpolicy.CanExport(a, d) {
			out = append(out, datasetView{Slug: d.Slug(), URL: "/exports/" + d.Slug() + ".csv"})
		}
	}
	jsonutil.OK(w, out)
}

// ServeExport handles GET /exports/{dataset}.csv.
func (h *Handler) ServeExport(w http.ResponseWriter, r *http.Request) {
	a, ok := authz.Actor(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r)
		return
	}
	d, err := donationpolicy.ParseDataset(chi.URLParam(r, "dataset"))
	if err != nil {
		uierrors.RenderNotFound(w, r, "Unknown export.")
		return
	}
	if !donationpolicy.CanExport(a, d) {
		uierrors.RenderForbidden(w, r, "You can't download that export.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "export "+d.Slug())
	defer cancel()

	var buf bytes.Buffer
	total, err := h.write(ctx, &buf, d, a)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "export failed", err, "Failed to build export.")
		return
	}

	if h.Archive != nil {
		key, err := h.Archive.Archive(ctx, d.Slug(), a.ID.Hex(), buf.Bytes())
		if err != nil {
			h.Log.Warn("export archive failed", zap.String("dataset", d.Slug()), zap.Error(err))
		} else {
			w.Header().Set("X-Export-Key", key)
		}
	}

	h.Log.Info("export downloaded",
		zap.String("dataset", d.Slug()),
		zap.String("user_id", a.ID.Hex()),
		zap.Int64("rows", total))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+csvutil.Filename(d.Slug(), time.Now())+`"`)
	w.Header().Set("X-Export-Rows", strconv.FormatInt(total, 10))
	if total > int64(limits.MaxExportRows) {
		w.Header().Set("X-Export-Truncated", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// write renders dataset d for a and returns how many records matched,
// which may exceed what was written.
func (h *Handler) write(ctx context.Context, buf *bytes.Buffer, d donationpolicy.Dataset, a donationpolicy.Actor) (int64, error) {
	id := a.ID
	switch d {
	case donationpolicy.DatasetUsers:
		rows, err := h.Users.Find(ctx, userstore.ListFilter{}, allRows)
		if err != nil {
			return 0, err
		}
		total, err := h.Users.Count(ctx, userstore.ListFilter{})
		if err != nil {
			return 0, err
		}
		return total, csvutil.Write(buf, csvutil.Users, rows)

	case donationpolicy.DatasetDonors:
		rows, total, err := h.Users.SearchDonors(ctx, userstore.DonorQuery{}, allRows)
		if err != nil {
			return 0, err
		}
		return total, csvutil.Write(buf, csvutil.Donors, rows)

	case donationpolicy.DatasetDonationRequests, donationpolicy.DatasetMyRequests:
		f := donationrequeststore.Filter{}
		if d == donationpolicy.DatasetMyRequests {
			f.RequesterID = &id
		}
		rows, err := h.Requests.Find(ctx, f, allRows)
		if err != nil {
			return 0, err
		}
		total, err := h.Requests.Count(ctx, f)
		if err != nil {
			return 0, err
		}
		return total, csvutil.Write(buf, csvutil.DonationRequests, rows)

	case donationpolicy.DatasetFundings, donationpolicy.DatasetMyFundings:
		f := fundingstore.Filter{}
		if d == donationpolicy.DatasetMyFundings {
			f.UserID = &id
		}
		rows, err := h.Fundings.Find(ctx, f, allRows)
		if err != nil {
			return 0, err
		}
		total, err := h.Fundings.Count(ctx, f)
		if err != nil {
			return 0, err
		}
		return total, csvutil.Write(buf, csvutil.Fundings, rows)
	}
	return 0, nil
}

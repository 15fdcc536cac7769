package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/adnanhaider/course-review-portal/internal/model"
	"github.com/adnanhaider/course-review-portal/internal/repository"
	"github.com/adnanhaider/course-review-portal/internal/service"
)

// AdminOfferingHandler manages offerings and the manual class-add flow
// that seeds courses, teachers and offerings in one request.
type AdminOfferingHandler struct {
	Offerings *repository.OfferingRepo
	Catalog   *repository.CatalogRepo
	Terms     *repository.TermRepo
	Audit     service.AuditSink
}

type subjectReq struct {
	Code        string `json:"code"`
	Title       string `json:"title"`
	TeacherName string `json:"teacher_name"`
}

type addClassReq struct {
	Department     string       `json:"department"`
	Program        string       `json:"program"`
	SemesterNumber int          `json:"semester_number"`
	Section        string       `json:"section"`
	TermID         *uint64      `json:"term_id"`
	Subjects       []subjectReq `json:"subjects"`
	// Single-subject shorthand, kept for older clients.
	Code        string `json:"code"`
	Title       string `json:"title"`
	TeacherName string `json:"teacher_name"`
}

type addClassSummary struct {
	CreatedOfferings int      `json:"created_offerings"`
	Skipped          int      `json:"skipped"`
	Details          []string `json:"details"`
}

type updateOfferingReq struct {
	Section        *string `json:"section"`
	SemesterNumber *int    `json:"semester_number"`
	TermID         *uint64 `json:"term_id"`
}

// ListByTerm returns the offerings of one term as joined detail rows.
func (h *AdminOfferingHandler) ListByTerm(c echo.Context) error {
	termID, err := strconv.ParseUint(c.QueryParam("term"), 10, 64)
	if err != nil || termID == 0 {
		return fail(c, http.StatusBadRequest, "term required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Offerings.ListByTerm(ctx, termID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	return ok(c, http.StatusOK, out)
}

// Get returns one offering's detail row.
func (h *AdminOfferingHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Offerings.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "offering not found")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	return ok(c, http.StatusOK, d)
}

// Update patches section, semester number or term assignment.
func (h *AdminOfferingHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	var req updateOfferingReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Offerings.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "offering not found")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	if err := h.Offerings.Update(ctx, id, req.Section, req.SemesterNumber, req.TermID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "an identical offering already exists")
		}
		return fail(c, http.StatusInternalServerError, "update failed")
	}
	h.record(c, ctx, "offering.update", &id)
	return ok(c, http.StatusOK, echo.Map{"message": "updated"})
}

// Delete removes an offering; refused while ratings reference it.
func (h *AdminOfferingHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Offerings.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return fail(c, http.StatusConflict, "offering has ratings and cannot be deleted")
		case errors.Is(err, sql.ErrNoRows):
			return fail(c, http.StatusNotFound, "offering not found")
		default:
			return fail(c, http.StatusInternalServerError, "delete failed")
		}
	}
	h.record(c, ctx, "offering.delete", &id)
	return c.NoContent(http.StatusNoContent)
}

// AddClass creates courses, teachers and offerings for a batch of
// subjects under one department/program/section. Re-submitting the same
// batch is idempotent: existing offerings are left alone.
func (h *AdminOfferingHandler) AddClass(c echo.Context) error {
	var req addClassReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	subjects := req.Subjects
	if len(subjects) == 0 && req.Code != "" && req.TeacherName != "" {
		subjects = []subjectReq{{Code: req.Code, Title: req.Title, TeacherName: req.TeacherName}}
	}
	if len(subjects) == 0 {
		return fail(c, http.StatusBadRequest, "no subjects provided")
	}
	if strings.TrimSpace(req.Department) == "" {
		return fail(c, http.StatusBadRequest, "department required")
	}
	if strings.TrimSpace(req.Program) == "" {
		return fail(c, http.StatusBadRequest, "program required")
	}
	if req.SemesterNumber < 1 {
		return fail(c, http.StatusBadRequest, "semester_number required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	termID := req.TermID
	if termID == nil {
		if active, err := h.Terms.GetActive(ctx); err == nil {
			termID = &active.ID
		}
	}

	dept, err := h.Catalog.FindOrCreateDepartment(ctx, req.Department)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "resolve department failed")
	}
	prog, err := h.Catalog.FindOrCreateProgram(ctx, req.Program, dept.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "resolve program failed")
	}

	var section *string
	if s := strings.TrimSpace(req.Section); s != "" {
		section = &s
	}
	sem := req.SemesterNumber

	out := addClassSummary{Details: []string{}}
	for _, s := range subjects {
		code := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s.Code), " ", ""))
		teacherName := strings.Join(strings.Fields(s.TeacherName), " ")
		if code == "" {
			out.Skipped++
			out.Details = append(out.Details, "skipped subject without code")
			continue
		}
		if teacherName == "" {
			out.Skipped++
			out.Details = append(out.Details, code+": skipped, no teacher")
			continue
		}

		course, err := h.Catalog.FindOrCreateCourse(ctx, code, strings.TrimSpace(s.Title))
		if err != nil {
			out.Skipped++
			out.Details = append(out.Details, code+": course lookup failed")
			continue
		}
		first, last := splitName(teacherName)
		teacher, err := h.Catalog.FindOrCreateTeacher(ctx, first, last)
		if err != nil {
			out.Skipped++
			out.Details = append(out.Details, code+": teacher lookup failed")
			continue
		}

		exists, err := h.Offerings.Exists(ctx, course.ID, teacher.ID, termID, section)
		if err != nil {
			out.Skipped++
			out.Details = append(out.Details, code+": existence check failed")
			continue
		}
		if exists {
			out.Details = append(out.Details, code+": offering already present")
			continue
		}
		_, err = h.Offerings.Create(ctx, model.Offering{
			CourseID:       course.ID,
			TeacherID:      teacher.ID,
			Section:        section,
			TermID:         termID,
			DepartmentID:   &dept.ID,
			ProgramID:      &prog.ID,
			SemesterNumber: &sem,
		})
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				out.Details = append(out.Details, code+": offering already present")
				continue
			}
			out.Skipped++
			out.Details = append(out.Details, code+": offering create failed")
			continue
		}
		out.CreatedOfferings++
		out.Details = append(out.Details, code+": offering created")
	}

	h.record(c, ctx, "class.addBatch", &prog.ID)
	return ok(c, http.StatusOK, out)
}

// splitName breaks "Ali Raza Khan" into first "Ali" and last "Raza Khan".
func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func (h *AdminOfferingHandler) record(c echo.Context, ctx context.Context, action string, targetID *uint64) {
	if h.Audit != nil {
		h.Audit.Record(ctx, action, actorID(c), "Offering", targetID, nil)
	}
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries. TeacherID restricts
// results to courses owned by that teacher.
type SubmissionFilter struct {
	AssignmentID *uint
	StudentID    *uint
	CourseID     *uint
	TeacherID    *uint
	PendingOnly  bool
	GradedOnly   bool
}

// SubmissionRepository defines data operations for submissions and their
// grading trail.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Resubmit(ctx context.Context, submission *models.Submission) error
	Delete(ctx context.Context, id uint) error
	ApplyGrade(ctx context.Context, submission *models.Submission, history *models.SubmissionGradeHistory) error
	ListHistory(ctx context.Context, submissionID uint) ([]models.SubmissionGradeHistory, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Assignment.Course").
		Preload("Student")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.AssignmentID != nil {
		query = query.Where("submissions.assignment_id = ?", *filter.AssignmentID)
	}
	if filter.StudentID != nil {
		query = query.Where("submissions.student_id = ?", *filter.StudentID)
	}
	if filter.CourseID != nil || filter.TeacherID != nil {
		query = query.Joins("JOIN assignments ON assignments.id = submissions.assignment_id")
		if filter.CourseID != nil {
			query = query.Where("assignments.course_id = ?", *filter.CourseID)
		}
		if filter.TeacherID != nil {
			query = query.
				Joins("JOIN courses ON courses.id = assignments.course_id").
				Where("courses.teacher_id = ?", *filter.TeacherID)
		}
	}
	if filter.PendingOnly {
		query = query.Where("submissions.grade IS NULL")
	}
	if filter.GradedOnly {
		query = query.Where("submissions.grade IS NOT NULL")
	}

	var submissions []models.Submission
	if err := query.Order("submissions.submitted_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Preload("History", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("graded_at DESC")
		}).
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Assignment", "Student", "History").Create(submission).Error
}

// Resubmit replaces the student-owned fields only; grading columns are left
// untouched.
func (r *submissionRepository) Resubmit(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Model(&models.Submission{ID: submission.ID}).
		Select("comment", "file_url", "submitted_at", "is_late").
		Updates(map[string]interface{}{
			"comment":      submission.Comment,
			"file_url":     submission.FileURL,
			"submitted_at": submission.SubmittedAt,
			"is_late":      submission.IsLate,
		}).Error
}

func (r *submissionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", id).Delete(&models.SubmissionGradeHistory{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Submission{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ApplyGrade writes the grading columns of submission, NULLs included, and
// appends history in the same transaction.
func (r *submissionRepository) ApplyGrade(ctx context.Context, submission *models.Submission, history *models.SubmissionGradeHistory) error {
	updates := map[string]interface{}{
		"grade":     nil,
		"feedback":  nil,
		"graded_by": nil,
		"graded_at": nil,
	}
	if submission.Grade != nil {
		updates["grade"] = *submission.Grade
	}
	if submission.Feedback != nil {
		updates["feedback"] = *submission.Feedback
	}
	if submission.GradedBy != nil {
		updates["graded_by"] = *submission.GradedBy
	}
	if submission.GradedAt != nil {
		updates["graded_at"] = *submission.GradedAt
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Submission{}).Where("id = ?", submission.ID).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if history != nil {
			if err := tx.Create(history).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *submissionRepository) ListHistory(ctx context.Context, submissionID uint) ([]models.SubmissionGradeHistory, error) {
	var history []models.SubmissionGradeHistory
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("graded_at DESC").
		Find(&history).Error; err != nil {
		return nil, err
	}
	return history, nil
}

package service

import (
	"context"
	"fmt"
	"techacademy_backend/internal/cms"
	"techacademy_backend/internal/model"
	"techacademy_backend/internal/repository"
	"techacademy_backend/internal/util"
	"techacademy_backend/pkg/logger"
	"techacademy_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
)

// GradeKnowledgeCheck scores answers against the test. Answers pointing outside
// the test or carrying an unknown question type are ignored; coding answers
// count toward the total but always need manual review.
func GradeKnowledgeCheck(test *model.KnowledgeCheck, answers []model.SubmittedAnswer) model.GradeResult {
	results := make([]model.QuestionResult, 0, len(answers))
	correct, total := 0, 0

	for _, a := range answers {
		if a.SectionIndex < 0 || a.SectionIndex >= len(test.Sections) || a.QuestionIndex < 0 {
			continue
		}
		section := &test.Sections[a.SectionIndex]

		switch a.QuestionType {
		case model.QuestionNormal:
			if a.QuestionIndex >= len(section.Questions) {
				continue
			}
			q := &section.Questions[a.QuestionIndex]
			total++
			isCorrect := a.Answer == q.CorrectAnswer
			if isCorrect {
				correct++
			}
			results = append(results, model.QuestionResult{
				SectionIndex:      a.SectionIndex,
				QuestionIndex:     a.QuestionIndex,
				QuestionType:      model.QuestionNormal,
				IsCorrect:         isCorrect,
				UserAnswer:        a.Answer,
				UserAnswerText:    q.OptionText(a.Answer),
				CorrectAnswer:     q.CorrectAnswer,
				CorrectAnswerText: q.OptionText(q.CorrectAnswer),
				Question:          q.Question,
			})
		case model.QuestionCoding:
			if a.QuestionIndex >= len(section.CodingQuestions) {
				continue
			}
			total++
			results = append(results, model.QuestionResult{
				SectionIndex:      a.SectionIndex,
				QuestionIndex:     a.QuestionIndex,
				QuestionType:      model.QuestionCoding,
				RequiresReview:    true,
				UserAnswer:        a.Answer,
				UserAnswerText:    a.Answer,
				CorrectAnswer:     model.ManualReviewMessage,
				CorrectAnswerText: model.ManualReviewMessage,
				Question:          section.CodingQuestions[a.QuestionIndex].Question,
			})
		}
	}

	percentage := model.Percentage(correct, total)
	passed := percentage >= model.PassThreshold
	message := fmt.Sprintf("You scored %d%%. You need at least %d%% to pass. Please review and try again.", percentage, model.PassThreshold)
	if passed {
		message = fmt.Sprintf("Congratulations! You scored %d%% and passed the knowledge check.", percentage)
	}

	return model.GradeResult{
		Score: model.ScoreSummary{
			Correct:    correct,
			Total:      total,
			Percentage: percentage,
			Passed:     passed,
		},
		Results: results,
		Message: message,
	}
}

type KnowledgeCheckService struct {
	CMS            CMSReader
	Mapper         *cms.Mapper
	SubmissionRepo *repository.KnowledgeCheckRepository
	Storage        *StorageService
	now            func() time.Time
}

func NewKnowledgeCheckService(client CMSReader, mapper *cms.Mapper, submissionRepo *repository.KnowledgeCheckRepository, storage *StorageService) *KnowledgeCheckService {
	return &KnowledgeCheckService{
		CMS:            client,
		Mapper:         mapper,
		SubmissionRepo: submissionRepo,
		Storage:        storage,
		now:            time.Now,
	}
}

// GetTest 课程未关联测验时返回 nil, nil
func (s *KnowledgeCheckService) GetTest(ctx context.Context, courseUID string) (*model.KnowledgeCheck, error) {
	course, err := s.CMS.GetEntry(ctx, cms.ContentTypeCourse, courseUID, "reference_test")
	if err != nil {
		return nil, cmsError(err, util.ErrCourseNotFound)
	}
	testUID := s.Mapper.MapCourse(course).TestUID
	if testUID == "" {
		return nil, nil
	}

	entry, err := s.CMS.GetEntry(ctx, cms.ContentTypeTest, testUID, "instruction")
	if err != nil {
		return nil, cmsError(err, util.ErrNoKnowledgeCheck)
	}
	return toKnowledgeCheck(s.Mapper.MapKnowledgeCheck(entry)), nil
}

func toKnowledgeCheck(e *cms.KnowledgeCheckEntry) *model.KnowledgeCheck {
	test := &model.KnowledgeCheck{
		UID:      e.UID,
		Title:    e.Title,
		Sections: make([]model.KnowledgeCheckSection, 0, len(e.Sections)),
	}
	if e.Instruction != nil {
		test.Instruction = &model.TestInstruction{
			UID:     e.Instruction.UID,
			Title:   e.Instruction.Title,
			Content: e.Instruction.Content,
		}
	}
	for _, sec := range e.Sections {
		section := model.KnowledgeCheckSection{
			Title:           sec.Title,
			Questions:       make([]model.ChoiceQuestion, 0, len(sec.Questions)),
			CodingQuestions: make([]model.CodingQuestion, 0, len(sec.CodingQuestions)),
		}
		for _, q := range sec.Questions {
			section.Questions = append(section.Questions, model.ChoiceQuestion{
				Question:      q.Question,
				OptionValue:   q.OptionValue,
				CorrectAnswer: q.CorrectAnswer,
			})
		}
		for _, q := range sec.CodingQuestions {
			section.CodingQuestions = append(section.CodingQuestions, model.CodingQuestion{Question: q.Question})
		}
		test.Sections = append(test.Sections, section)
	}
	return test
}

type submissionArchive struct {
	UserID      string                  `json:"userId"`
	CourseUID   string                  `json:"courseUid"`
	TestUID     string                  `json:"testUid"`
	Answers     []model.SubmittedAnswer `json:"answers"`
	Result      model.GradeResult       `json:"result"`
	SubmittedAt time.Time               `json:"submittedAt"`
}

// Submit 评分并保存记录，原始答卷归档到对象存储供编程题人工复核
func (s *KnowledgeCheckService) Submit(ctx context.Context, userID, courseUID string, answers []model.SubmittedAnswer) (*model.GradeResult, error) {
	test, err := s.GetTest(ctx, courseUID)
	if err != nil {
		return nil, err
	}
	if test == nil {
		return nil, util.ErrNoKnowledgeCheck
	}

	result := GradeKnowledgeCheck(test, answers)
	now := s.now()

	needsReview := false
	for _, r := range result.Results {
		if r.RequiresReview {
			needsReview = true
			break
		}
	}

	submission := &model.KnowledgeCheckSubmission{
		UserID:      userID,
		CourseUID:   courseUID,
		TestUID:     test.UID,
		Correct:     result.Score.Correct,
		Total:       result.Score.Total,
		Percentage:  result.Score.Percentage,
		Passed:      result.Score.Passed,
		NeedsReview: needsReview,
		Results:     result.Results,
		SubmittedAt: now,
	}
	if err := s.SubmissionRepo.Create(submission); err != nil {
		return nil, err
	}

	outcome := "failed"
	if result.Score.Passed {
		outcome = "passed"
	}
	monitoring.KnowledgeCheckSubmissions.WithLabelValues(outcome).Inc()

	if s.Storage != nil {
		key := fmt.Sprintf("knowledge-checks/%s/%s/%d.json", courseUID, userID, submission.ID)
		url, err := s.Storage.PutJSON(ctx, key, submissionArchive{
			UserID:      userID,
			CourseUID:   courseUID,
			TestUID:     test.UID,
			Answers:     answers,
			Result:      result,
			SubmittedAt: now,
		})
		if err != nil {
			logger.Log.Error("Failed to archive submission", zap.String("key", key), zap.Error(err))
		} else if err := s.SubmissionRepo.UpdateArchiveURL(submission.ID, url); err != nil {
			logger.Log.Warn("Failed to record archive url", zap.Uint("submission", submission.ID), zap.Error(err))
		}
	}

	logger.Log.Info("Knowledge check graded",
		zap.String("userId", userID),
		zap.String("courseUid", courseUID),
		zap.Int("percentage", result.Score.Percentage),
		zap.Bool("passed", result.Score.Passed),
	)
	return &result, nil
}

func (s *KnowledgeCheckService) Submissions(userID, courseUID string) ([]model.KnowledgeCheckSubmission, error) {
	return s.SubmissionRepo.ListByUserAndCourse(userID, courseUID)
}

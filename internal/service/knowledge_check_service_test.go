package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"techacademy_backend/internal/cms"
	"techacademy_backend/internal/model"
	"techacademy_backend/internal/repository"
	"techacademy_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTest() *model.KnowledgeCheck {
	return &model.KnowledgeCheck{
		UID:   "t1",
		Title: "Basics",
		Sections: []model.KnowledgeCheckSection{
			{
				Title: "Entries",
				Questions: []model.ChoiceQuestion{
					{Question: "Q1", OptionValue: map[string]string{"option_1": "A", "option_2": "B"}, CorrectAnswer: "option_2"},
					{Question: "Q2", OptionValue: map[string]string{"option_1": "Yes", "option_2": "No"}, CorrectAnswer: "option_1"},
				},
				CodingQuestions: []model.CodingQuestion{{Question: "Write a query"}},
			},
		},
	}
}

func TestGradeKnowledgeCheck_Scoring(t *testing.T) {
	result := GradeKnowledgeCheck(sampleTest(), []model.SubmittedAnswer{
		{SectionIndex: 0, QuestionIndex: 0, Answer: "option_2", QuestionType: model.QuestionNormal},
		{SectionIndex: 0, QuestionIndex: 1, Answer: "option_2", QuestionType: model.QuestionNormal},
		{SectionIndex: 0, QuestionIndex: 0, Answer: "SELECT 1", QuestionType: model.QuestionCoding},
	})

	assert.Equal(t, model.ScoreSummary{Correct: 1, Total: 3, Percentage: 33, Passed: false}, result.Score)
	assert.Equal(t, "You scored 33%. You need at least 80% to pass. Please review and try again.", result.Message)
	require.Len(t, result.Results, 3)

	first := result.Results[0]
	assert.True(t, first.IsCorrect)
	assert.Equal(t, "B", first.UserAnswerText)
	assert.Equal(t, "B", first.CorrectAnswerText)

	second := result.Results[1]
	assert.False(t, second.IsCorrect)
	assert.Equal(t, "No", second.UserAnswerText)
	assert.Equal(t, "Yes", second.CorrectAnswerText)

	coding := result.Results[2]
	assert.False(t, coding.IsCorrect)
	assert.True(t, coding.RequiresReview)
	assert.Equal(t, "SELECT 1", coding.UserAnswerText)
	assert.Equal(t, model.ManualReviewMessage, coding.CorrectAnswer)
	assert.Equal(t, "Write a query", coding.Question)
}

func TestGradeKnowledgeCheck_SkipsInvalidAnswers(t *testing.T) {
	result := GradeKnowledgeCheck(sampleTest(), []model.SubmittedAnswer{
		{SectionIndex: 3, QuestionIndex: 0, Answer: "option_1", QuestionType: model.QuestionNormal},
		{SectionIndex: 0, QuestionIndex: 9, Answer: "option_1", QuestionType: model.QuestionNormal},
		{SectionIndex: -1, QuestionIndex: 0, Answer: "option_1", QuestionType: model.QuestionNormal},
		{SectionIndex: 0, QuestionIndex: 4, Answer: "x", QuestionType: model.QuestionCoding},
		{SectionIndex: 0, QuestionIndex: 0, Answer: "option_2", QuestionType: "essay"},
	})

	assert.Equal(t, model.ScoreSummary{}, result.Score)
	assert.Empty(t, result.Results)
}

func TestGradeKnowledgeCheck_PassThreshold(t *testing.T) {
	test := &model.KnowledgeCheck{Sections: []model.KnowledgeCheckSection{{}}}
	for i := 0; i < 5; i++ {
		test.Sections[0].Questions = append(test.Sections[0].Questions, model.ChoiceQuestion{CorrectAnswer: "option_1"})
	}

	answers := func(correct int) []model.SubmittedAnswer {
		var list []model.SubmittedAnswer
		for i := 0; i < 5; i++ {
			a := "option_2"
			if i < correct {
				a = "option_1"
			}
			list = append(list, model.SubmittedAnswer{SectionIndex: 0, QuestionIndex: i, Answer: a, QuestionType: model.QuestionNormal})
		}
		return list
	}

	four := GradeKnowledgeCheck(test, answers(4))
	assert.Equal(t, 80, four.Score.Percentage)
	assert.True(t, four.Score.Passed)
	assert.Equal(t, "Congratulations! You scored 80% and passed the knowledge check.", four.Message)

	three := GradeKnowledgeCheck(test, answers(3))
	assert.Equal(t, 60, three.Score.Percentage)
	assert.False(t, three.Score.Passed)

	// correct never exceeds total and the percentage stays in range
	for n := 0; n <= 5; n++ {
		r := GradeKnowledgeCheck(test, answers(n))
		assert.LessOrEqual(t, r.Score.Correct, r.Score.Total)
		assert.GreaterOrEqual(t, r.Score.Percentage, 0)
		assert.LessOrEqual(t, r.Score.Percentage, 100)
	}
}

func newKnowledgeCheckFixture(t *testing.T) (*KnowledgeCheckService, *fakeCMS, string) {
	t.Helper()
	db := newTestDB(t)
	fake := newFakeCMS()
	fake.entries["course/c1"] = cms.Entry{"uid": "c1", "reference_test": []any{map[string]any{"uid": "t1"}}}
	fake.entries["course/c2"] = cms.Entry{"uid": "c2"}
	fake.entries["course_test/t1"] = cms.Entry{
		"uid":   "t1",
		"title": "Entries quiz",
		"section": []any{map[string]any{
			"section_title": "One",
			"question": []any{map[string]any{
				"question_to_be_asked":     "Pick B",
				"option_value":             map[string]any{"option_1": "A", "option_2": "B"},
				"please_select_the_answer": "option_2",
			}},
			"question_coding": []any{map[string]any{"coding_question_to_be_asked": "Write code"}},
		}},
	}

	root := t.TempDir()
	storage := &StorageService{Provider: &LocalStorageProvider{Root: root}}
	svc := NewKnowledgeCheckService(fake, cms.NewMapper(nil), repository.NewKnowledgeCheckRepository(db), storage)
	svc.now = fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return svc, fake, root
}

func TestKnowledgeCheckService_GetTest(t *testing.T) {
	svc, _, _ := newKnowledgeCheckFixture(t)

	test, err := svc.GetTest(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, test)
	assert.Equal(t, "Entries quiz", test.Title)
	require.Len(t, test.Sections, 1)
	assert.Equal(t, "option_2", test.Sections[0].Questions[0].CorrectAnswer)
	assert.Equal(t, "", test.Sections[0].Questions[0].OptionValue["option_4"])

	test, err = svc.GetTest(context.Background(), "c2")
	require.NoError(t, err)
	assert.Nil(t, test)

	_, err = svc.GetTest(context.Background(), "missing")
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestKnowledgeCheckService_Submit(t *testing.T) {
	svc, _, root := newKnowledgeCheckFixture(t)
	ctx := context.Background()

	result, err := svc.Submit(ctx, "user-1", "c1", []model.SubmittedAnswer{
		{SectionIndex: 0, QuestionIndex: 0, Answer: "option_2", QuestionType: model.QuestionNormal},
		{SectionIndex: 0, QuestionIndex: 0, Answer: "print()", QuestionType: model.QuestionCoding},
	})
	require.NoError(t, err)
	assert.Equal(t, 50, result.Score.Percentage)

	list, err := svc.Submissions("user-1", "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].NeedsReview)
	assert.Equal(t, "t1", list[0].TestUID)
	assert.Len(t, list[0].Results, 2)
	assert.NotEmpty(t, list[0].ArchiveURL)

	archived := filepath.Join(root, "knowledge-checks", "c1", "user-1")
	files, err := os.ReadDir(archived)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestKnowledgeCheckService_SubmitWithoutTest(t *testing.T) {
	svc, fake, _ := newKnowledgeCheckFixture(t)

	_, err := svc.Submit(context.Background(), "user-1", "c2", nil)
	assert.ErrorIs(t, err, util.ErrNoKnowledgeCheck)

	fake.err = assert.AnError
	_, err = svc.Submit(context.Background(), "user-1", "c1", nil)
	assert.ErrorIs(t, err, util.ErrCMSUnavailable)
}

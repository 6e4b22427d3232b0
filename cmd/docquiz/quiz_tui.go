package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kalambet/docquiz/internal/api"
	"github.com/kalambet/docquiz/internal/quiz"
	"github.com/kalambet/docquiz/internal/storage"
)

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Take a quiz generated from the indexed documents",
	Long: `Take a quiz generated from the indexed documents.

Multiple-choice questions accept the option letter (A-D) or the option text.
With --adaptive and no --topic, the quiz targets the learner's weakest topic.

Examples:
  docquiz quiz --user ada --topic "goroutines" --num 5
  docquiz quiz --user ada --adaptive
  docquiz quiz --user ada --quiz-id 3f2a...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("user")
		topic, _ := cmd.Flags().GetString("topic")
		num, _ := cmd.Flags().GetInt("num")
		adaptive, _ := cmd.Flags().GetBool("adaptive")
		quizID, _ := cmd.Flags().GetString("quiz-id")
		language, _ := cmd.Flags().GetString("language")
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("--user is required")
		}

		ctx := cmd.Context()
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		user, err := client.registerUser(ctx, name)
		if err != nil {
			return err
		}

		total := 0
		if quizID == "" {
			req := api.QuizCreateRequest{Topic: topic, NumQuestions: num, Language: language}
			if adaptive {
				req.UserID = user.ID
			}
			printStep("generating quiz")
			created, err := client.createQuiz(ctx, req)
			if err != nil {
				return err
			}
			quizID, topic, total = created.QuizID, created.Topic, created.TotalQuestions
		}

		first, err := client.startQuiz(ctx, quizID, user.ID)
		if err != nil {
			return err
		}

		m := newQuizModel(ctx, client, user.ID, quizID, topic, total, first)
		final, err := tea.NewProgram(m).Run()
		if err != nil {
			return err
		}
		if fm, ok := final.(quizModel); ok && fm.err != nil {
			return fm.err
		}
		return nil
	},
}

func init() {
	quizCmd.Flags().String("user", "", "learner name (registered on first use)")
	quizCmd.Flags().String("topic", "", "quiz topic (empty for a broad sample)")
	quizCmd.Flags().Int("num", 0, "number of questions (default from config)")
	quizCmd.Flags().Bool("adaptive", false, "target the learner's weakest topic when --topic is empty")
	quizCmd.Flags().String("quiz-id", "", "resume an existing quiz instead of generating one")
	quizCmd.Flags().String("language", "", "question language (default from config)")
}

// quizAnswerer submits one answer; *apiClient satisfies it.
type quizAnswerer interface {
	answerQuiz(ctx context.Context, req api.QuizAnswerRequest) (api.QuizAnswerResponse, error)
}

type quizPhase int

const (
	phaseAsking quizPhase = iota
	phaseGrading
	phaseFeedback
	phaseDone
)

type gradedMsg struct {
	resp api.QuizAnswerResponse
	err  error
}

type quizModel struct {
	ctx    context.Context
	client quizAnswerer
	userID string
	quizID string
	topic  string
	total  int

	question *storage.Question
	asked    int
	input    []rune
	phase    quizPhase
	last     api.QuizAnswerResponse
	summary  *quiz.Summary
	err      error
}

func newQuizModel(ctx context.Context, client quizAnswerer, userID, quizID, topic string, total int, first *storage.Question) quizModel {
	m := quizModel{
		ctx:      ctx,
		client:   client,
		userID:   userID,
		quizID:   quizID,
		topic:    topic,
		total:    total,
		question: first,
		asked:    1,
	}
	if first == nil {
		m.phase = phaseDone
	}
	return m
}

func (m quizModel) Init() tea.Cmd { return nil }

func (m quizModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case gradedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.phase = phaseDone
			return m, tea.Quit
		}
		m.last = msg.resp
		m.summary = msg.resp.Summary
		m.phase = phaseFeedback
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch m.phase {
		case phaseAsking:
			return m.updateInput(msg)
		case phaseFeedback:
			if msg.Type != tea.KeyEnter {
				return m, nil
			}
			if m.last.NextQuestion == nil {
				m.phase = phaseDone
				return m, nil
			}
			m.question = m.last.NextQuestion
			m.asked++
			m.input = nil
			m.phase = phaseAsking
			return m, nil
		case phaseDone:
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m quizModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		answer := resolveAnswer(m.question, string(m.input))
		if answer == "" {
			return m, nil
		}
		m.phase = phaseGrading
		return m, m.submit(m.question.ID, answer)
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	}
	return m, nil
}

func (m quizModel) submit(questionID, answer string) tea.Cmd {
	client, ctx := m.client, m.ctx
	req := api.QuizAnswerRequest{QuizID: m.quizID, QuestionID: questionID, UserID: m.userID, UserAnswer: answer}
	return func() tea.Msg {
		resp, err := client.answerQuiz(ctx, req)
		return gradedMsg{resp: resp, err: err}
	}
}

// resolveAnswer maps a single option letter to the option text for
// multiple-choice questions and trims everything else.
func resolveAnswer(q *storage.Question, input string) string {
	input = strings.TrimSpace(input)
	if q == nil || q.Type != storage.MultipleChoice || len(input) != 1 {
		return input
	}
	idx := int(strings.ToUpper(input)[0]) - 'A'
	if idx >= 0 && idx < len(q.Options) {
		return q.Options[idx]
	}
	return input
}

var (
	tuiTitle    = lipgloss.NewStyle().Bold(true)
	tuiDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tuiBox      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	tuiCorrect  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	tuiWrong    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	tuiQuestion = lipgloss.NewStyle().Width(80)
)

func (m quizModel) View() string {
	var b strings.Builder
	header := "Quiz"
	if m.topic != "" {
		header += ": " + m.topic
	}
	b.WriteString(tuiTitle.Render(header) + "\n")

	switch m.phase {
	case phaseDone:
		b.WriteString(m.viewSummary())
		b.WriteString(tuiDim.Render("press any key to exit") + "\n")
		return b.String()
	case phaseFeedback:
		if m.last.Correct {
			b.WriteString(tuiCorrect.Render("Correct") + "\n")
		} else {
			b.WriteString(tuiWrong.Render("Incorrect") + "\n")
		}
		b.WriteString(tuiQuestion.Render(m.last.Feedback) + "\n")
		b.WriteString(tuiDim.Render(fmt.Sprintf("score %.2f", m.last.Score)) + "\n\n")
		next := "enter: next question"
		if m.last.NextQuestion == nil {
			next = "enter: results"
		}
		b.WriteString(tuiDim.Render(next) + "\n")
		return b.String()
	}

	b.WriteString(tuiDim.Render(m.progress()) + "\n\n")
	b.WriteString(tuiQuestion.Render(m.question.Text) + "\n")
	for i, opt := range m.question.Options {
		fmt.Fprintf(&b, "  %c) %s\n", 'A'+i, opt)
	}
	b.WriteString("\n")
	if m.phase == phaseGrading {
		b.WriteString(tuiDim.Render("grading...") + "\n")
		return b.String()
	}
	b.WriteString(tuiBox.Render("> "+string(m.input)+"█") + "\n")
	b.WriteString(tuiDim.Render("enter: submit  esc: quit") + "\n")
	return b.String()
}

func (m quizModel) progress() string {
	if m.total > 0 {
		return fmt.Sprintf("question %d of %d", m.asked, m.total)
	}
	return fmt.Sprintf("question %d", m.asked)
}

func (m quizModel) viewSummary() string {
	if m.summary == nil {
		return "No questions to answer.\n"
	}
	s := m.summary
	return fmt.Sprintf("Score %.2f / %.0f\n%d of %d correct this run, %d of %d across all attempts\n",
		s.Score, s.MaxScore, s.AnsweredCorrect, s.Answered, s.Correct, s.Total)
}

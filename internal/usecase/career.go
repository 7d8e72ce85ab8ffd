package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"cdoportal/internal/domain"
	"cdoportal/internal/ports"
)

const (
	resumeSystemPrompt    = "You are a helpful career advisor specializing in federal employment."
	interviewSystemPrompt = "You are a helpful career advisor specializing in federal employment interviews."

	noFeedback  = "Unable to generate feedback."
	noQuestions = "Unable to generate questions."
	noResponse  = "I apologize, but I couldn't generate a response."
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type resumeInput struct {
	ResumeText string `validate:"required"`
}

type interviewInput struct {
	JobTitle string `validate:"required"`
}

type chatInput struct {
	Messages []domain.Message `validate:"required,min=1,dive"`
}

func checkInput(in any) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// Career builds prompt templates for the career tools and forwards them to the model.
type Career struct {
	completer ports.Completer
}

// NewCareer wraps a completion service.
func NewCareer(completer ports.Completer) *Career {
	return &Career{completer: completer}
}

// ReviewResume asks for actionable feedback, optionally against a job description.
func (c *Career) ReviewResume(ctx context.Context, resumeText, jobDescription string) (string, error) {
	if err := checkInput(resumeInput{ResumeText: strings.TrimSpace(resumeText)}); err != nil {
		return "", err
	}

	var prompt string
	if strings.TrimSpace(jobDescription) != "" {
		prompt = "You are an expert federal resume reviewer. Review the following resume for a federal position and provide detailed, actionable feedback. " +
			"Compare it against this job description and suggest improvements to better match the requirements.\n\n" +
			"Job Description:\n" + jobDescription + "\n\n" +
			"Resume:\n" + resumeText + "\n\n" +
			"Provide feedback on:\n" +
			"1. Alignment with federal resume best practices\n" +
			"2. Keywords and skills matching\n" +
			"3. Accomplishments and quantifiable results\n" +
			"4. Format and structure\n" +
			"5. Specific improvements to better match the job"
	} else {
		prompt = "You are an expert federal resume reviewer. Review the following resume and provide detailed, actionable feedback for federal job applications.\n\n" +
			"Resume:\n" + resumeText + "\n\n" +
			"Provide feedback on:\n" +
			"1. Alignment with federal resume best practices (STAR method, etc.)\n" +
			"2. Keywords and technical skills\n" +
			"3. Accomplishments and quantifiable results\n" +
			"4. Format and structure\n" +
			"5. Suggestions for improvement"
	}

	return c.complete(ctx, "review resume", noFeedback,
		domain.Message{Role: domain.RoleSystem, Content: resumeSystemPrompt},
		domain.Message{Role: domain.RoleUser, Content: prompt},
	)
}

// PrepareInterview asks for ten practice questions, tailored to the agency when given.
func (c *Career) PrepareInterview(ctx context.Context, jobTitle, agency string) (string, error) {
	if err := checkInput(interviewInput{JobTitle: strings.TrimSpace(jobTitle)}); err != nil {
		return "", err
	}

	var prompt string
	if strings.TrimSpace(agency) != "" {
		prompt = fmt.Sprintf("Generate 10 comprehensive interview practice questions for a %s position at %s. Include:\n", jobTitle, agency) +
			"1. Technical questions specific to the role\n" +
			"2. Behavioral questions (STAR method)\n" +
			"3. Questions about federal data governance and policy\n" +
			"4. Agency-specific questions\n" +
			"5. Questions about AI/ML ethics and responsible use\n\n" +
			"For each question, provide context on why it might be asked and what the interviewer is looking for."
	} else {
		prompt = fmt.Sprintf("Generate 10 comprehensive interview practice questions for a %s position in federal government. Include:\n", jobTitle) +
			"1. Technical questions specific to the role\n" +
			"2. Behavioral questions (STAR method)\n" +
			"3. Questions about federal data governance and policy\n" +
			"4. Questions about AI/ML ethics and responsible use\n" +
			"5. Leadership and collaboration questions\n\n" +
			"For each question, provide context on why it might be asked and what the interviewer is looking for."
	}

	return c.complete(ctx, "prepare interview", noQuestions,
		domain.Message{Role: domain.RoleSystem, Content: interviewSystemPrompt},
		domain.Message{Role: domain.RoleUser, Content: prompt},
	)
}

// SendMessage forwards a caller-built conversation unchanged.
func (c *Career) SendMessage(ctx context.Context, messages []domain.Message) (string, error) {
	if err := checkInput(chatInput{Messages: messages}); err != nil {
		return "", err
	}

	return c.complete(ctx, "send message", noResponse, messages...)
}

func (c *Career) complete(ctx context.Context, op, fallback string, messages ...domain.Message) (string, error) {
	if c.completer == nil {
		return "", fmt.Errorf("%s: %w: completion service is not configured", op, domain.ErrUpstream)
	}
	out, err := c.completer.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, domain.ErrUpstream, err)
	}
	if strings.TrimSpace(out) == "" {
		return fallback, nil
	}
	return out, nil
}

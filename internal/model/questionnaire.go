package model

// Questionnaire keys recognized in technical-posture answers.
const (
	QuestionWebhooks   = "webhooks"
	QuestionSandboxEnv = "sandbox_env"
	QuestionRetries    = "retries"
)

// Questionnaire holds the self-reported integration capabilities.
type Questionnaire struct {
	Webhooks   bool `json:"webhooks"`
	SandboxEnv bool `json:"sandbox_env"`
	Retries    bool `json:"retries"`
}

// QuestionnaireFromMap reads answers from a loosely typed map. Unknown keys
// are ignored and missing keys count as false.
func QuestionnaireFromMap(answers map[string]any) Questionnaire {
	return Questionnaire{
		Webhooks:   Truthy(answers[QuestionWebhooks]),
		SandboxEnv: Truthy(answers[QuestionSandboxEnv]),
		Retries:    Truthy(answers[QuestionRetries]),
	}
}

// Answered counts the capabilities answered yes.
func (q Questionnaire) Answered() int {
	n := 0
	for _, yes := range []bool{q.Webhooks, q.SandboxEnv, q.Retries} {
		if yes {
			n++
		}
	}
	return n
}

package approval

import "context"

// Provider obtains a verdict from the operator for a single prompt.
// Implementations must return promptly once ctx is done.
type Provider interface {
	Confirm(ctx context.Context, prompt Prompt) (Answer, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, prompt Prompt) (Answer, error)

func (f ProviderFunc) Confirm(ctx context.Context, prompt Prompt) (Answer, error) {
	return f(ctx, prompt)
}

// AutoProvider answers every prompt with a fixed verdict. Useful for
// unattended runs and tests.
type AutoProvider struct {
	Verdict  Verdict
	Remember bool
}

func (a AutoProvider) Confirm(ctx context.Context, prompt Prompt) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{Verdict: VerdictDeny}, err
	}
	verdict := a.Verdict
	if verdict != VerdictAllow {
		verdict = VerdictDeny
	}
	return Answer{Verdict: verdict, Remember: a.Remember, Note: "auto"}, nil
}

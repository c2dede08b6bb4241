package accesscontrol

import "context"

type contextKey string

const subjectContextKey contextKey = "accesscontrol.subject"

// WithSubject attaches an authenticated Subject to ctx, for the HTTP
// surface to read back when making per-request authorization checks.
func WithSubject(ctx context.Context, subj Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey, subj)
}

// SubjectFromContext retrieves the Subject attached by WithSubject. The
// anonymous Subject is returned if none was attached (no bearer token
// presented).
func SubjectFromContext(ctx context.Context) Subject {
	if subj, ok := ctx.Value(subjectContextKey).(Subject); ok {
		return subj
	}
	return Subject{Name: "anonymous"}
}

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/ausbildung/nachweis/internal/shared"
)

// Issuer signs access tokens.
type Issuer interface {
	Issue(p shared.Principal) (string, error)
}

// TokenOptions defines the flags of the token command.
type TokenOptions struct {
	UserID   string
	Role     string
	Username string
	Stdout   io.Writer
	Stderr   io.Writer
}

// Token prints a signed access token for local testing and operations.
func Token(issuer Issuer, opts TokenOptions) int {
	p := shared.Principal{
		Username: strings.TrimSpace(opts.Username),
		Role:     shared.Role(strings.ToUpper(strings.TrimSpace(opts.Role))),
	}
	if opts.UserID == "" {
		p.UserID = uuid.New()
	} else {
		id, err := uuid.Parse(opts.UserID)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "token: invalid --user %q\n", opts.UserID)
			return 1
		}
		p.UserID = id
	}
	token, err := issuer.Issue(p)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "token: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(opts.Stdout, token)
	return 0
}

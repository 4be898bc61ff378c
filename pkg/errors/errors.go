package errors

import (
	"encoding/json"
	"errors"
)

// Representation of errors in the API. These are divided into a small
// number of categories, essentially distinguished by whose fault the
// error is; i.e., is this error:
//   - a transient problem with the service, so worth trying again?
//   - something that was asked for but does not exist (yet)?
//   - not going to work until the caller sends something different?
type Error struct {
	Type Type
	// a message that can be printed out for the operator
	Help string `json:"help"`
	// the underlying error that can be e.g., logged for developers to look at
	Err error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Type string

const (
	// The operation looked fine on paper, but something went wrong
	Server Type = "server"
	// The thing you mentioned, whatever it is, just doesn't exist
	Missing = "missing"
	// The request was understood, but the payload or its timing is
	// not something we can act on
	User = "user"
)

func IsMissing(err error) bool {
	var e *Error
	if errors.As(err, &e) && e.Type == Missing {
		return true
	}
	return false
}

func (e *Error) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{
		Type: string(e.Type),
		Help: e.Help,
		Err:  errMsg,
	}
	return json.Marshal(jsonable)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{}
	if err := json.Unmarshal(data, &jsonable); err != nil {
		return err
	}
	e.Type = Type(jsonable.Type)
	e.Help = jsonable.Help
	if jsonable.Err != "" {
		e.Err = errors.New(jsonable.Err)
	}
	return nil
}

func CoverAllError(err error) *Error {
	return &Error{
		Type: Server,
		Err:  err,
		Help: `Error: ` + err.Error() + `

There is no specific help message for the error above. Check the
sacar logs on this host for the request that failed; they carry the
repository and commit being rolled out.
`,
	}
}

func MissingError(what string, err error) *Error {
	return &Error{
		Type: Missing,
		Err:  err,
		Help: `Not found: ` + what + `

This usually means a notification arrived for a commit that sacar
has not seen a check suite for yet, or the key was written under a
different prefix.
`,
	}
}

func InvalidPayloadError(err error) *Error {
	return &Error{
		Type: User,
		Err:  err,
		Help: `The request payload was not valid

` + err.Error() + `
`,
	}
}

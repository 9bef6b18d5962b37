// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"
)

// Wrap creates a new error that wraps the given error with additional context.
// If err is nil, returns nil.
//
// Usage:
//
//	if err := m.controller.Spawn(opts); err != nil {
//	    return errors.Wrap(err, "spawning dev server")
//	}
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf creates a new error that wraps the given error with formatted context.
// If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Classify returns the ErrorType of the first ErrorClassifier in err's
// chain, or "internal" when none is found. Nil errors classify as "".
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorType()
	}
	return "internal"
}

// Suggestion walks err's chain and returns the suggestion of the first
// user-visible error, or the Suggestion field of a ValidationError.
func Suggestion(err error) string {
	for err != nil {
		if userErr, ok := err.(UserVisibleError); ok {
			if userErr.IsUserVisible() {
				return userErr.Suggestion()
			}
			return ""
		}
		if validationErr, ok := err.(*ValidationError); ok {
			return validationErr.Suggestion
		}
		err = errors.Unwrap(err)
	}
	return ""
}

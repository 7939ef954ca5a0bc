// Copyright (c) 2020 - for information on the respective copyright owner
// see the NOTICE file and/or the repository at
// https://github.com/direct-state-transfer/fundme
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

package fundme

import (
	"fmt"

	"github.com/pkg/errors"
)

// APIError is the error returned to the clients of the node API.
type APIError struct {
	Type string `json:"type"` // The error should be one of the known errors.
	Info string `json:"info"` // Info field contains additional information about the error.
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s. Info: %s", e.Type, e.Info)
}

// NewAPIError returns an APIError of the given type with the message of err as additional info.
func NewAPIError(errType string, err error) error {
	if err == nil {
		return errors.WithStack(APIError{Type: errType})
	}
	return errors.WithStack(APIError{Type: errType, Info: err.Error()})
}

// ErrUnconfirmedTransfer is returned by a Settlement when a transaction was submitted
// to the chain but it could not be confirmed whether it succeeded. The transfer may
// still complete, so the caller must not assume that no value was moved.
var ErrUnconfirmedTransfer = errors.New("transfer submitted but not confirmed")

var (
	ErrInsufficientContribution = "Contribution is below the minimum USD value."
	ErrNotOwner                 = "Only the owner of the ledger can withdraw."
	ErrTransferFailed           = "Transfer of funds on the settlement layer failed."
	ErrTransferPending          = "Transfer was submitted but is not yet confirmed."
	ErrUnknownFunder            = "No funder corresponding to the specified index."

	ErrInvalidAddress = "Invalid address string."
	ErrInvalidAmount  = "Invalid amount string."
	ErrInvalidRequest = "Invalid request body."

	ErrPriceFeedUnavailable = "Price feed did not return a valid rate."
	ErrInternalServer       = "Internal Server Error"
)

package authrpc

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Wire field names of the Struct payloads.
const (
	FieldValid    = "valid"
	FieldUserID   = "user_id"
	FieldUsername = "username"
	FieldEmail    = "email"
	FieldUserType = "user_type"
	FieldSource   = "source"
	FieldError    = "error"
)

// VerifyTokenResponse is the VerifyToken result. A valid response carries
// the subject fields, an invalid one only Error.
type VerifyTokenResponse struct {
	Valid    bool
	UserID   string
	Username string
	Email    string
	UserType string
	Error    string
}

// Identity is the WhoAmI result.
type Identity struct {
	UserID   string
	Username string
	Email    string
	UserType string
	Source   string
}

func (r *VerifyTokenResponse) toStruct() (*structpb.Struct, error) {
	fields := map[string]any{FieldValid: r.Valid}
	if r.Valid {
		fields[FieldUserID] = r.UserID
		fields[FieldUsername] = r.Username
		fields[FieldEmail] = r.Email
		fields[FieldUserType] = r.UserType
	} else {
		fields[FieldError] = r.Error
	}
	return structpb.NewStruct(fields)
}

func verifyTokenResponseFrom(st *structpb.Struct) (*VerifyTokenResponse, error) {
	f := st.GetFields()
	v, ok := f[FieldValid]
	if !ok {
		return nil, fmt.Errorf("verify token response: missing %q", FieldValid)
	}
	return &VerifyTokenResponse{
		Valid:    v.GetBoolValue(),
		UserID:   f[FieldUserID].GetStringValue(),
		Username: f[FieldUsername].GetStringValue(),
		Email:    f[FieldEmail].GetStringValue(),
		UserType: f[FieldUserType].GetStringValue(),
		Error:    f[FieldError].GetStringValue(),
	}, nil
}

func (i *Identity) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		FieldUserID:   i.UserID,
		FieldUsername: i.Username,
		FieldEmail:    i.Email,
		FieldUserType: i.UserType,
		FieldSource:   i.Source,
	})
}

func identityFrom(st *structpb.Struct) (*Identity, error) {
	f := st.GetFields()
	if _, ok := f[FieldUserID]; !ok {
		return nil, fmt.Errorf("identity: missing %q", FieldUserID)
	}
	return &Identity{
		UserID:   f[FieldUserID].GetStringValue(),
		Username: f[FieldUsername].GetStringValue(),
		Email:    f[FieldEmail].GetStringValue(),
		UserType: f[FieldUserType].GetStringValue(),
		Source:   f[FieldSource].GetStringValue(),
	}, nil
}

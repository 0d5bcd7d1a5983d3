package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/aretw0/callflow"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names instead of Go ones.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(fmt.Sprintf("register notblank validation: %v", err))
	}
	return v
}

type createFlowRequest struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type addEdgeRequest struct {
	FromNodeID     string `json:"from_node_id" validate:"required"`
	ToNodeID       string `json:"to_node_id" validate:"required"`
	ConditionValue string `json:"condition_value" validate:"notblank"`
	Label          string `json:"label"`
}

type matchFieldsRequest struct {
	Fields []string `json:"fields" validate:"required,dive,notblank"`
}

type startPreviewRequest struct {
	FlowID  string            `json:"flow_id" validate:"required"`
	Contact map[string]string `json:"contact"`
}

type advanceRequest struct {
	EdgeID string `json:"edge_id" validate:"required"`
}

type replyRequest struct {
	Utterance string `json:"utterance" validate:"notblank,max=1000"`
}

// branchRequest reuses the authoring spec and its validate tags.
type branchRequest = callflow.BranchSpec

type branchResponse struct {
	Branch  callflow.Branch   `json:"branch"`
	Changes *domain.ChangeSet `json:"changes"`
}

type variablesResponse struct {
	Variables []string `json:"variables"`
}

// decode reads a JSON body into dst and runs the struct validator on it.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return check(dst)
}

func check(dst any) error {
	if reflect.Indirect(reflect.ValueOf(dst)).Kind() != reflect.Struct {
		return nil
	}
	err := validate.Struct(dst)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domain.ValidationError{Field: fe.Field(), Reason: fmt.Sprintf("failed on %q", fe.Tag())}
	}
	return err
}

// decodeNodePatch accepts a loose JSON object and maps it onto a NodePatch.
// Unknown keys (including id and is_root) are rejected.
func decodeNodePatch(w http.ResponseWriter, r *http.Request) (domain.NodePatch, error) {
	var raw map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		return domain.NodePatch{}, &domain.ValidationError{Field: "body", Reason: err.Error()}
	}

	var patch domain.NodePatch
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &patch,
	})
	if err != nil {
		return domain.NodePatch{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return domain.NodePatch{}, &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	if patch.IsEmpty() {
		return domain.NodePatch{}, &domain.ValidationError{Field: "body", Reason: "patch changes nothing"}
	}
	return patch, nil
}

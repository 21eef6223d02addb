package api

import (
	"errors"
	"net/http"
	"strconv"

	"ruleguard/core"
	"ruleguard/metrics"
	"ruleguard/storage"
	"ruleguard/validation"
)

const (
	defaultPerPage = 20
	maxPerPage     = 1000
)

// rulePage is the body of a find response
type rulePage struct {
	Page    int         `json:"page"`
	PerPage int         `json:"perPage"`
	Total   int64       `json:"total"`
	Data    []core.Rule `json:"data"`
}

// bulkItemError reports one failed item of a bulk update
type bulkItemError struct {
	ID     string        `json:"id,omitempty"`
	RuleID string        `json:"rule_id,omitempty"`
	Error  errorResponse `json:"error"`
}

// recordValidation counts a validation outcome. It returns the
// *ValidationError when err is one.
func recordValidation(err error) *validation.ValidationError {
	if err == nil {
		metrics.RuleValidations.WithLabelValues("valid").Inc()
		return nil
	}
	metrics.RuleValidations.WithLabelValues("invalid").Inc()
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		metrics.RuleValidationFailures.WithLabelValues(string(verr.Kind), verr.Field()).Inc()
		return verr
	}
	return nil
}

// applyUpdate validates one raw payload and stores it. On failure it returns
// the error response to send instead of a rule.
func (a *API) applyUpdate(r *http.Request, raw map[string]interface{}) (*core.Rule, *errorResponse) {
	update, err := validation.ValidateRuleUpdate(raw)
	if verr := recordValidation(err); verr != nil {
		metrics.RuleUpdates.WithLabelValues("invalid").Inc()
		resp := validationErrorResponse(verr)
		return nil, &resp
	}

	rule, err := a.ruleStorage.UpdateRule(update)
	switch {
	case err == nil:
		metrics.RuleUpdates.WithLabelValues("success").Inc()
		return rule, nil
	case errors.Is(err, storage.ErrRuleNotFound):
		metrics.RuleUpdates.WithLabelValues("not_found").Inc()
		field, value := update.Identifier()
		return nil, &errorResponse{StatusCode: http.StatusNotFound, Message: notFoundMessage(field, value)}
	default:
		metrics.RuleUpdates.WithLabelValues("error").Inc()
		a.logger.Errorw("Failed to update rule", "error", err, "request_id", requestIDFrom(r.Context()))
		return nil, &errorResponse{StatusCode: http.StatusInternalServerError, Message: "Failed to update rule"}
	}
}

// updateRule handles PUT and PATCH: only the fields present in the payload
// change, the rule is named by exactly one of id and rule_id
func (a *API) updateRule(w http.ResponseWriter, r *http.Request) {
	a.limitBody(w, r)
	raw, err := validation.DecodeJSON(r.Body)
	if err != nil {
		a.writeDecodeError(w, r, err)
		return
	}

	rule, errResp := a.applyUpdate(r, raw)
	if errResp != nil {
		a.respondJSON(w, errResp, errResp.StatusCode)
		return
	}
	a.respondJSON(w, rule, http.StatusOK)
}

// bulkUpdateRules applies every payload of an array independently and
// reports one result per item, in request order
func (a *API) bulkUpdateRules(w http.ResponseWriter, r *http.Request) {
	a.limitBody(w, r)
	payloads, err := validation.DecodeJSONList(r.Body)
	if err != nil {
		a.writeDecodeError(w, r, err)
		return
	}

	results := make([]interface{}, 0, len(payloads))
	for _, raw := range payloads {
		rule, errResp := a.applyUpdate(r, raw)
		if errResp == nil {
			results = append(results, rule)
			continue
		}
		item := bulkItemError{Error: *errResp}
		item.ID, _ = raw["id"].(string)
		item.RuleID, _ = raw["rule_id"].(string)
		results = append(results, item)
	}
	a.respondJSON(w, results, http.StatusOK)
}

// validateRule checks a payload without storing it and echoes the normalized
// form. mode=create selects create semantics.
func (a *API) validateRule(w http.ResponseWriter, r *http.Request) {
	a.limitBody(w, r)
	raw, err := validation.DecodeJSON(r.Body)
	if err != nil {
		a.writeDecodeError(w, r, err)
		return
	}

	mode := validation.ModeUpdate
	switch r.URL.Query().Get("mode") {
	case "", "update":
	case "create":
		mode = validation.ModeCreate
	default:
		a.writeError(w, r, http.StatusBadRequest, "mode must be one of [update, create]", nil)
		return
	}

	update, err := validation.NewValidator(mode).Validate(raw)
	if verr := recordValidation(err); verr != nil {
		a.writeValidationError(w, verr)
		return
	}
	a.respondJSON(w, update, http.StatusOK)
}

func (a *API) createRule(w http.ResponseWriter, r *http.Request) {
	a.limitBody(w, r)
	raw, err := validation.DecodeJSON(r.Body)
	if err != nil {
		a.writeDecodeError(w, r, err)
		return
	}

	update, err := validation.ValidateRuleCreate(raw)
	if verr := recordValidation(err); verr != nil {
		a.writeValidationError(w, verr)
		return
	}

	defaults := core.DefaultCreateDefaults()
	defaults.OutputIndex = a.config.Rules.DefaultOutputIndex
	rule := core.NewRule(update, defaults, a.now())

	if err := a.ruleStorage.CreateRule(rule); err != nil {
		if errors.Is(err, storage.ErrDuplicateRule) {
			a.writeError(w, r, http.StatusConflict, "rule_id: \""+rule.RuleID+"\" already exists", err)
			return
		}
		a.writeError(w, r, http.StatusInternalServerError, "Failed to create rule", err)
		return
	}
	a.respondJSON(w, rule, http.StatusOK)
}

// lookupRule resolves the ?id= or ?rule_id= query parameter. It writes the
// error response itself and returns nil on failure.
func (a *API) lookupRule(w http.ResponseWriter, r *http.Request) *core.Rule {
	query := r.URL.Query()
	id, ruleID := query.Get("id"), query.Get("rule_id")
	if (id == "") == (ruleID == "") {
		a.writeError(w, r, http.StatusBadRequest, "exactly one of id or rule_id must be set", nil)
		return nil
	}

	var (
		rule  *core.Rule
		err   error
		field = "id"
		value = id
	)
	if id != "" {
		rule, err = a.ruleStorage.GetRule(id)
	} else {
		field, value = "rule_id", ruleID
		rule, err = a.ruleStorage.GetRuleByRuleID(ruleID)
	}

	switch {
	case errors.Is(err, storage.ErrRuleNotFound):
		a.writeError(w, r, http.StatusNotFound, notFoundMessage(field, value), err)
		return nil
	case err != nil:
		a.writeError(w, r, http.StatusInternalServerError, "Failed to get rule", err)
		return nil
	}
	return rule
}

func (a *API) getRule(w http.ResponseWriter, r *http.Request) {
	if rule := a.lookupRule(w, r); rule != nil {
		a.respondJSON(w, rule, http.StatusOK)
	}
}

// deleteRule deletes the rule and answers with it as it was
func (a *API) deleteRule(w http.ResponseWriter, r *http.Request) {
	rule := a.lookupRule(w, r)
	if rule == nil {
		return
	}

	if err := a.ruleStorage.DeleteRule(rule.ID); err != nil {
		if errors.Is(err, storage.ErrRuleNotFound) {
			a.writeError(w, r, http.StatusNotFound, notFoundMessage("id", rule.ID), err)
			return
		}
		a.writeError(w, r, http.StatusInternalServerError, "Failed to delete rule", err)
		return
	}
	a.respondJSON(w, rule, http.StatusOK)
}

func (a *API) findRules(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1)
	if err != nil || page < 1 {
		a.writeError(w, r, http.StatusBadRequest, "page must be a positive integer", err)
		return
	}
	perPage, err := intParam(r, "per_page", defaultPerPage)
	if err != nil || perPage < 1 || perPage > maxPerPage {
		a.writeError(w, r, http.StatusBadRequest, "per_page must be an integer between 1 and 1000", err)
		return
	}

	rules, err := a.ruleStorage.ListRules(perPage, (page-1)*perPage)
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}
	total, err := a.ruleStorage.GetRuleCount()
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "Failed to count rules", err)
		return
	}

	a.respondJSON(w, rulePage{Page: page, PerPage: perPage, Total: total, Data: rules}, http.StatusOK)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

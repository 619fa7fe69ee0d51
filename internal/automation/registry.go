package automation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/zulandar/admitflow/internal/apperr"
	"github.com/zulandar/admitflow/internal/models"
	"gorm.io/gorm"
)

var validate *validator.Validate

func init() {
	validate = newValidator()
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("trigger", func(fl validator.FieldLevel) bool {
		return IsTrigger(fl.Field().String())
	})
	v.RegisterStructValidation(validateAction, models.Action{})
	return v
}

func validateAction(sl validator.StructLevel) {
	a := sl.Current().Interface().(models.Action)
	if _, err := ParseKind(a.Kind); err != nil {
		sl.ReportError(a.Kind, "kind", "Kind", "action_kind", a.Kind)
		return
	}
	norm, _ := Normalize(a)
	if param, err := checkParams(norm); err != nil {
		sl.ReportError(fmt.Sprint(norm.Param(param)), param, "Params", "action_param", err.Error())
	}
}

// Definition is the editable part of a workflow.
type Definition struct {
	Name        string          `json:"name" yaml:"name" validate:"required,max=100"`
	Description string          `json:"description" yaml:"description"`
	Trigger     string          `json:"trigger" yaml:"trigger" validate:"required,trigger"`
	Conditions  map[string]any  `json:"conditions" yaml:"conditions"`
	Actions     []models.Action `json:"actions" yaml:"actions" validate:"required,min=1,dive"`
	Active      *bool           `json:"active" yaml:"active"`
}

// Patch holds a partial workflow update; nil fields are left unchanged.
type Patch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Trigger     *string          `json:"trigger"`
	Conditions  *map[string]any  `json:"conditions"`
	Actions     *[]models.Action `json:"actions"`
	Active      *bool            `json:"active"`
}

// ListFilters holds optional filters for listing workflows.
type ListFilters struct {
	Trigger    string
	ActiveOnly bool
}

// Registry stores workflow definitions. Every write is validated: the
// trigger must be known, the action list non-empty, and each action a
// known kind with its required params.
type Registry struct {
	db *gorm.DB
}

// NewRegistry creates a Registry.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// Validate checks a definition and returns it with canonical action kinds.
func Validate(def Definition) (Definition, error) {
	def.Name = strings.TrimSpace(def.Name)
	if err := validate.Struct(def); err != nil {
		return def, validationError(err)
	}
	actions := make([]models.Action, len(def.Actions))
	for i, a := range def.Actions {
		norm, err := Normalize(a)
		if err != nil {
			return def, apperr.Validation("actions[%d]: %v", i, err).WithOp("automation: validate")
		}
		actions[i] = norm
	}
	def.Actions = actions
	return def, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.KindValidation, "invalid workflow", err).WithOp("automation: validate")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := strings.TrimPrefix(fe.Namespace(), "Definition.")
		switch fe.Tag() {
		case "required", "min":
			msgs = append(msgs, ns+" is required")
		case "trigger":
			msgs = append(msgs, fmt.Sprintf("unknown trigger %q", fe.Value()))
		case "action_kind":
			msgs = append(msgs, fmt.Sprintf("%s: unknown action kind %q", ns, fe.Param()))
		case "action_param":
			msgs = append(msgs, fmt.Sprintf("%s: %s", ns, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", ns, fe.Tag()))
		}
	}
	return apperr.Validation("invalid workflow: %s", strings.Join(msgs, "; ")).WithOp("automation: validate")
}

// Create stores a new workflow. Workflows are active unless def.Active
// says otherwise.
func (r *Registry) Create(def Definition) (*models.Workflow, error) {
	def, err := Validate(def)
	if err != nil {
		return nil, err
	}
	wf := models.Workflow{
		Name:        def.Name,
		Description: def.Description,
		Trigger:     def.Trigger,
		Conditions:  def.Conditions,
		Actions:     def.Actions,
		Active:      def.Active == nil || *def.Active,
	}
	if err := r.db.Create(&wf).Error; err != nil {
		return nil, apperr.Persistence("automation: create workflow", err)
	}
	return &wf, nil
}

// Get retrieves a workflow by ID.
func (r *Registry) Get(id uint) (*models.Workflow, error) {
	var wf models.Workflow
	if err := r.db.First(&wf, id).Error; err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("automation: get workflow %d", id), err)
	}
	return &wf, nil
}

// GetByName retrieves a workflow by its unique name.
func (r *Registry) GetByName(name string) (*models.Workflow, error) {
	var wf models.Workflow
	if err := r.db.Where("name = ?", name).First(&wf).Error; err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("automation: get workflow %q", name), err)
	}
	return &wf, nil
}

// List returns workflows ordered by id.
func (r *Registry) List(filters ListFilters) ([]models.Workflow, error) {
	q := r.db.Model(&models.Workflow{})
	if filters.Trigger != "" {
		q = q.Where("trigger_name = ?", filters.Trigger)
	}
	if filters.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	var wfs []models.Workflow
	if err := q.Order("id ASC").Find(&wfs).Error; err != nil {
		return nil, apperr.Persistence("automation: list workflows", err)
	}
	return wfs, nil
}

// ListActive returns the active workflows for a trigger in firing order.
func (r *Registry) ListActive(trigger string) ([]models.Workflow, error) {
	return r.List(ListFilters{Trigger: trigger, ActiveOnly: true})
}

// Update applies a partial update. The merged result is validated as a
// whole before anything is written.
func (r *Registry) Update(id uint, p Patch) (*models.Workflow, error) {
	var wf models.Workflow
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&wf, id).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("automation: get workflow %d", id), err)
		}
		def := Definition{
			Name:        wf.Name,
			Description: wf.Description,
			Trigger:     wf.Trigger,
			Conditions:  wf.Conditions,
			Actions:     wf.Actions,
		}
		if p.Name != nil {
			def.Name = *p.Name
		}
		if p.Description != nil {
			def.Description = *p.Description
		}
		if p.Trigger != nil {
			def.Trigger = *p.Trigger
		}
		if p.Conditions != nil {
			def.Conditions = *p.Conditions
		}
		if p.Actions != nil {
			def.Actions = *p.Actions
		}
		def, err := Validate(def)
		if err != nil {
			return err
		}

		wf.Name = def.Name
		wf.Description = def.Description
		wf.Trigger = def.Trigger
		wf.Conditions = def.Conditions
		wf.Actions = def.Actions
		if p.Active != nil {
			wf.Active = *p.Active
		}
		if err := tx.Save(&wf).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("automation: update workflow %d", id), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

// SetActive enables or disables a workflow.
func (r *Registry) SetActive(id uint, active bool) error {
	result := r.db.Model(&models.Workflow{}).Where("id = ?", id).Update("active", active)
	if result.Error != nil {
		return apperr.Persistence(fmt.Sprintf("automation: set active %d", id), result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		r.db.Model(&models.Workflow{}).Where("id = ?", id).Count(&count)
		if count == 0 {
			return apperr.NotFound("workflow %d not found", id).WithOp("automation: set active")
		}
	}
	return nil
}

// Delete removes a workflow. Its run history is kept.
func (r *Registry) Delete(id uint) error {
	result := r.db.Delete(&models.Workflow{}, id)
	if result.Error != nil {
		return apperr.Persistence(fmt.Sprintf("automation: delete workflow %d", id), result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("workflow %d not found", id).WithOp("automation: delete")
	}
	return nil
}

// Apply creates the workflow named by def, or replaces its definition if
// it exists. It reports whether a new workflow was created.
func (r *Registry) Apply(def Definition) (*models.Workflow, bool, error) {
	def, err := Validate(def)
	if err != nil {
		return nil, false, err
	}
	existing, err := r.GetByName(def.Name)
	if apperr.Is(err, apperr.KindNotFound) {
		wf, err := r.Create(def)
		return wf, err == nil, err
	}
	if err != nil {
		return nil, false, err
	}
	wf, err := r.Update(existing.ID, Patch{
		Description: &def.Description,
		Trigger:     &def.Trigger,
		Conditions:  &def.Conditions,
		Actions:     &def.Actions,
		Active:      def.Active,
	})
	return wf, false, err
}

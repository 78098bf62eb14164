package flow

import (
	"time"

	"conveyor/bizerror"
	"conveyor/common"
	"conveyor/domain"
	"conveyor/domain/graph"
	"conveyor/idgen"
	"conveyor/persistence"
	"conveyor/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/patrickmn/go-cache"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	// detailCache keeps assembled definition details off the hot path.
	detailCache = cache.New(5*time.Minute, 1*time.Minute)

	QueryWorkflowDefinitionsFunc     = QueryWorkflowDefinitions
	DetailWorkflowDefinitionFunc     = DetailWorkflowDefinition
	CreateWorkflowDefinitionFunc     = CreateWorkflowDefinition
	DeleteWorkflowDefinitionFunc     = DeleteWorkflowDefinition
	UpdateWorkflowDefinitionBaseFunc = UpdateWorkflowDefinitionBase
	UpdateDefinitionStatusFunc       = UpdateWorkflowDefinitionStatus
	AddWorkflowStepsFunc             = AddWorkflowSteps
	AddWorkflowTransitionsFunc       = AddWorkflowTransitions
	DeleteWorkflowTransitionsFunc    = DeleteWorkflowTransitions
)

func CreateWorkflowDefinition(c *WorkflowDefinitionCreation, s *session.Session) (*domain.WorkflowDefinitionDetail, error) {
	now := common.CurrentTimestamp()
	detail := &domain.WorkflowDefinitionDetail{
		WorkflowDefinition: domain.WorkflowDefinition{
			ID:            idgen.NextID(idWorker),
			TenantID:      s.TenantID,
			Code:          c.Code,
			Name:          c.Name,
			Category:      c.Category,
			TriggerType:   c.TriggerType,
			TriggerConfig: c.TriggerConfig,
			IsActive:      true,
			CreateTime:    now,
		},
	}
	if detail.TriggerType == "" {
		detail.TriggerType = domain.TriggerManual
	}

	stepIDByCode := map[string]types.ID{}
	for idx, sc := range c.Steps {
		step := domain.WorkflowStep{
			ID:                 idgen.NextID(idWorker),
			DefinitionID:       detail.ID,
			Code:               sc.Code,
			Name:               sc.Name,
			Type:               sc.Type,
			AssigneeType:       sc.AssigneeType,
			AssigneeID:         sc.AssigneeID,
			AssigneeExpression: sc.AssigneeExpression,
			SlaHours:           sc.SlaHours,
			EscalationUserID:   sc.EscalationUserID,
			Config:             sc.Config,
			IsRequired:         sc.IsRequired,
			Sequence:           10000 + idx + 1,
			CreateTime:         now,
		}
		stepIDByCode[step.Code] = step.ID
		detail.Steps = append(detail.Steps, step)
	}
	for idx, tc := range c.Transitions {
		fromID, fromFound := stepIDByCode[tc.FromStepCode]
		toID, toFound := stepIDByCode[tc.ToStepCode]
		if !fromFound || !toFound {
			return nil, bizerror.ErrUnknownStep
		}
		transition := domain.WorkflowTransition{
			ID:            idgen.NextID(idWorker),
			DefinitionID:  detail.ID,
			FromStepID:    fromID,
			ToStepID:      toID,
			ConditionType: tc.ConditionType,
			Condition:     tc.Condition,
			Label:         tc.Label,
			Sequence:      10000 + idx + 1,
			CreateTime:    now,
		}
		if transition.ConditionType == "" {
			transition.ConditionType = domain.ConditionAlways
		}
		detail.Transitions = append(detail.Transitions, transition)
	}

	// a full graph supplied at creation must satisfy the structural invariants;
	// incremental editing may pass through degenerate shapes later
	if len(detail.Steps) > 0 {
		if err := graph.NewGraph(detail.Steps, detail.Transitions).Validate(); err != nil {
			return nil, err
		}
	}

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		var existing domain.WorkflowDefinition
		err := tx.Where(&domain.WorkflowDefinition{TenantID: s.TenantID, Code: c.Code}).First(&existing).Error
		if err == nil {
			return bizerror.ErrDefinitionCodeExisted
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		if err := tx.Create(&detail.WorkflowDefinition).Error; err != nil {
			return err
		}
		for i := range detail.Steps {
			if err := tx.Create(&detail.Steps[i]).Error; err != nil {
				return err
			}
		}
		for i := range detail.Transitions {
			if err := tx.Create(&detail.Transitions[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func DetailWorkflowDefinition(id types.ID, s *session.Session) (*domain.WorkflowDefinitionDetail, error) {
	if cached, found := detailCache.Get(id.String()); found {
		detail, ok := cached.(*domain.WorkflowDefinitionDetail)
		if ok && detail.TenantID == s.TenantID {
			return detail, nil
		}
	}

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	detail, err := LoadDefinitionDetail(db, id, s.TenantID)
	if err != nil {
		return nil, err
	}
	detailCache.Set(id.String(), detail, cache.DefaultExpiration)
	return detail, nil
}

// LoadDefinitionDetail assembles a definition with its ordered steps and
// transitions on the given db handle (callers may pass a transaction).
func LoadDefinitionDetail(db *gorm.DB, id types.ID, tenantID types.ID) (*domain.WorkflowDefinitionDetail, error) {
	detail := domain.WorkflowDefinitionDetail{}
	if err := db.Where(&domain.WorkflowDefinition{ID: id}).First(&detail.WorkflowDefinition).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	if detail.TenantID != tenantID {
		return nil, bizerror.ErrNotFound
	}
	if err := db.Where(domain.WorkflowStep{DefinitionID: id}).Order("sequence ASC").Find(&detail.Steps).Error; err != nil {
		return nil, err
	}
	if err := db.Where(domain.WorkflowTransition{DefinitionID: id}).Order("sequence ASC").Find(&detail.Transitions).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

func QueryWorkflowDefinitions(query *domain.WorkflowDefinitionQuery, s *session.Session) (*[]domain.WorkflowDefinition, error) {
	var definitions []domain.WorkflowDefinition
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	q := db.Where(domain.WorkflowDefinition{TenantID: s.TenantID})
	if query.Name != "" {
		q = q.Where("name like ?", "%"+query.Name+"%")
	}
	if query.Category != "" {
		q = q.Where(domain.WorkflowDefinition{Category: query.Category})
	}
	if err := q.Order("create_time ASC").Find(&definitions).Error; err != nil {
		return nil, err
	}
	return &definitions, nil
}

func UpdateWorkflowDefinitionBase(id types.ID, c *WorkflowDefinitionBaseUpdation, s *session.Session) (*domain.WorkflowDefinition, error) {
	definition := domain.WorkflowDefinition{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := loadTenantDefinition(tx, id, s.TenantID, &definition); err != nil {
			return err
		}
		if err := tx.Model(&domain.WorkflowDefinition{}).Where(&domain.WorkflowDefinition{ID: id}).
			Update(&domain.WorkflowDefinition{Name: c.Name, TriggerType: c.TriggerType, TriggerConfig: c.TriggerConfig}).Error; err != nil {
			return err
		}
		// query again
		if err := tx.Where(&domain.WorkflowDefinition{ID: id}).First(&definition).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	detailCache.Delete(id.String())
	return &definition, nil
}

// UpdateWorkflowDefinitionStatus flips isActive. Definitions are deactivated,
// never hard-deleted, while instances reference them.
func UpdateWorkflowDefinitionStatus(id types.ID, c *WorkflowDefinitionStatusUpdating, s *session.Session) error {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		definition := domain.WorkflowDefinition{}
		if err := loadTenantDefinition(tx, id, s.TenantID, &definition); err != nil {
			return err
		}
		return tx.Model(&domain.WorkflowDefinition{}).Where(&domain.WorkflowDefinition{ID: id}).
			Update("is_active", *c.IsActive).Error
	})
	if err != nil {
		return err
	}
	detailCache.Delete(id.String())
	return nil
}

func DeleteWorkflowDefinition(id types.ID, s *session.Session) error {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		definition := domain.WorkflowDefinition{}
		if err := loadTenantDefinition(tx, id, s.TenantID, &definition); err != nil {
			return err
		}
		if err := isDefinitionReferenced(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&domain.WorkflowDefinition{}).Delete(&domain.WorkflowDefinition{ID: id}).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.WorkflowStep{}).Where("definition_id = ?", id).
			Delete(&domain.WorkflowStep{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.WorkflowTransition{}).Where("definition_id = ?", id).
			Delete(&domain.WorkflowTransition{}).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	detailCache.Delete(id.String())
	return nil
}

func AddWorkflowSteps(id types.ID, creations []StepCreation, s *session.Session) error {
	now := common.CurrentTimestamp()
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		definition := domain.WorkflowDefinition{}
		if err := loadTenantDefinition(tx, id, s.TenantID, &definition); err != nil {
			return err
		}
		var maxSequence int
		var existing []domain.WorkflowStep
		if err := tx.Where(domain.WorkflowStep{DefinitionID: id}).Find(&existing).Error; err != nil {
			return err
		}
		for _, step := range existing {
			if step.Sequence > maxSequence {
				maxSequence = step.Sequence
			}
		}
		if maxSequence == 0 {
			maxSequence = 10000
		}
		for idx, sc := range creations {
			step := domain.WorkflowStep{
				ID:                 idgen.NextID(idWorker),
				DefinitionID:       id,
				Code:               sc.Code,
				Name:               sc.Name,
				Type:               sc.Type,
				AssigneeType:       sc.AssigneeType,
				AssigneeID:         sc.AssigneeID,
				AssigneeExpression: sc.AssigneeExpression,
				SlaHours:           sc.SlaHours,
				EscalationUserID:   sc.EscalationUserID,
				Config:             sc.Config,
				IsRequired:         sc.IsRequired,
				Sequence:           maxSequence + idx + 1,
				CreateTime:         now,
			}
			if err := tx.Create(&step).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	detailCache.Delete(id.String())
	return nil
}

func AddWorkflowTransitions(id types.ID, creations []TransitionCreation, s *session.Session) error {
	now := common.CurrentTimestamp()
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		definition := domain.WorkflowDefinition{}
		if err := loadTenantDefinition(tx, id, s.TenantID, &definition); err != nil {
			return err
		}
		stepIDByCode, err := stepCodeIndex(tx, id)
		if err != nil {
			return err
		}
		var maxSequence int
		var existing []domain.WorkflowTransition
		if err := tx.Where(domain.WorkflowTransition{DefinitionID: id}).Find(&existing).Error; err != nil {
			return err
		}
		for _, t := range existing {
			if t.Sequence > maxSequence {
				maxSequence = t.Sequence
			}
		}
		if maxSequence == 0 {
			maxSequence = 10000
		}
		for idx, tc := range creations {
			fromID, fromFound := stepIDByCode[tc.FromStepCode]
			toID, toFound := stepIDByCode[tc.ToStepCode]
			if !fromFound || !toFound {
				return bizerror.ErrUnknownStep
			}
			transition := domain.WorkflowTransition{
				ID:            idgen.NextID(idWorker),
				DefinitionID:  id,
				FromStepID:    fromID,
				ToStepID:      toID,
				ConditionType: tc.ConditionType,
				Condition:     tc.Condition,
				Label:         tc.Label,
				Sequence:      maxSequence + idx + 1,
				CreateTime:    now,
			}
			if transition.ConditionType == "" {
				transition.ConditionType = domain.ConditionAlways
			}
			if err := tx.Create(&transition).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	detailCache.Delete(id.String())
	return nil
}

func DeleteWorkflowTransitions(id types.ID, deletions []TransitionDeletion, s *session.Session) error {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		definition := domain.WorkflowDefinition{}
		if err := loadTenantDefinition(tx, id, s.TenantID, &definition); err != nil {
			return err
		}
		stepIDByCode, err := stepCodeIndex(tx, id)
		if err != nil {
			return err
		}
		for _, d := range deletions {
			fromID, fromFound := stepIDByCode[d.FromStepCode]
			toID, toFound := stepIDByCode[d.ToStepCode]
			if !fromFound || !toFound {
				return bizerror.ErrUnknownStep
			}
			q := tx.Model(&domain.WorkflowTransition{}).
				Where("definition_id = ?", id).
				Where("from_step_id = ?", fromID).
				Where("to_step_id = ?", toID)
			if err := q.Delete(&domain.WorkflowTransition{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	detailCache.Delete(id.String())
	return nil
}

func loadTenantDefinition(tx *gorm.DB, id types.ID, tenantID types.ID, out *domain.WorkflowDefinition) error {
	if err := tx.Where(&domain.WorkflowDefinition{ID: id}).First(out).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return bizerror.ErrNotFound
		}
		return err
	}
	if out.TenantID != tenantID {
		return bizerror.ErrNotFound
	}
	return nil
}

func stepCodeIndex(tx *gorm.DB, definitionID types.ID) (map[string]types.ID, error) {
	var steps []domain.WorkflowStep
	if err := tx.Where(domain.WorkflowStep{DefinitionID: definitionID}).Find(&steps).Error; err != nil {
		return nil, err
	}
	index := map[string]types.ID{}
	for _, step := range steps {
		index[step.Code] = step.ID
	}
	return index, nil
}

func isDefinitionReferenced(db *gorm.DB, definitionID types.ID) error {
	var instance domain.WorkflowInstance
	err := db.Model(&domain.WorkflowInstance{}).Where(&domain.WorkflowInstance{DefinitionID: definitionID}).First(&instance).Error
	if err == nil {
		return bizerror.ErrDefinitionIsReferenced
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return nil
}

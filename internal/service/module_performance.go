package service

import (
	"context"
	"credahead_backend/internal/model"
	"credahead_backend/internal/repository"
	"credahead_backend/pkg/logger"
	"math"

	"go.uber.org/zap"
)

// ModulePerformance per-module accuracy; Accuracy is nil when nothing in the
// module was attempted.
type ModulePerformance struct {
	ModuleID   string `json:"moduleId"`
	ModuleName string `json:"moduleName"`
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
	Accuracy   *int   `json:"accuracy"`
}

type ModuleLinkFinder interface {
	FindModuleLinks(ctx context.Context, questionIDs []string) ([]repository.QuestionModuleLink, error)
}

type ModuleLister interface {
	ListModules(ctx context.Context) ([]model.Module, error)
}

type ModulePerformanceService struct {
	links   ModuleLinkFinder
	modules ModuleLister
}

func NewModulePerformanceService(links ModuleLinkFinder, modules ModuleLister) *ModulePerformanceService {
	return &ModulePerformanceService{links: links, modules: modules}
}

func (s *ModulePerformanceService) moduleList(ctx context.Context) []model.Module {
	modules, err := s.modules.ListModules(ctx)
	if err != nil || len(modules) == 0 {
		if err != nil {
			logger.Log.Warn("module list unavailable, using built-in modules", zap.Error(err))
		}
		return model.DefaultModules
	}
	return modules
}

func emptyPerformance(modules []model.Module) []ModulePerformance {
	out := make([]ModulePerformance, len(modules))
	for i, m := range modules {
		out[i] = ModulePerformance{ModuleID: m.ModuleID, ModuleName: m.Name}
	}
	return out
}

// CalculateModulePerformance groups responses by the module of each
// question's lesson. Responses that cannot be linked are skipped.
func (s *ModulePerformanceService) CalculateModulePerformance(ctx context.Context, responses []Response) []ModulePerformance {
	modules := s.moduleList(ctx)
	result := emptyPerformance(modules)
	if len(responses) == 0 {
		return result
	}

	ids := make([]string, 0, len(responses))
	for _, r := range responses {
		ids = append(ids, r.QuestionID)
	}
	links, err := s.links.FindModuleLinks(ctx, ids)
	if err != nil {
		logger.Log.Error("module join failed", zap.Error(err))
		return result
	}

	moduleOf := make(map[string]string, len(links))
	for _, l := range links {
		moduleOf[l.QuestionID] = l.ModuleID
	}
	index := make(map[string]int, len(result))
	for i, m := range result {
		index[m.ModuleID] = i
	}

	for _, r := range responses {
		moduleID, ok := moduleOf[r.QuestionID]
		if !ok {
			continue
		}
		i, ok := index[moduleID]
		if !ok {
			continue
		}
		result[i].Total++
		if r.IsCorrect {
			result[i].Correct++
		}
	}

	for i := range result {
		if result[i].Total == 0 {
			continue
		}
		acc := int(math.Round(float64(result[i].Correct) / float64(result[i].Total) * 100))
		result[i].Accuracy = &acc
	}
	return result
}

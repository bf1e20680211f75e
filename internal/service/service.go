package service

import (
	"github.com/smartcity/traffic-analyzer/internal/domain"
)

// AnalysisLogRepository is re-exported from domain for convenience
type AnalysisLogRepository = domain.AnalysisLogRepository

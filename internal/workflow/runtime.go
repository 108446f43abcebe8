package workflow

import (
	"log/slog"

	"github.com/zxlitianshu/Kekari-agent/internal/assets"
	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/classify"
	"github.com/zxlitianshu/Kekari-agent/internal/confirmation"
	"github.com/zxlitianshu/Kekari-agent/internal/publishing"
	"github.com/zxlitianshu/Kekari-agent/internal/resolver"
	"github.com/zxlitianshu/Kekari-agent/internal/search"
)

// Runtime bundles the dependencies that workflow steps require. It is
// constructed by higher-level composition code from infrastructure and
// domain systems.
type Runtime struct {
	Classifier  classify.Classifier
	Searcher    search.Searcher
	Transformer assets.Transformer
	Publisher   publishing.Publisher
	Gate        *publishing.Gate
	Catalog     catalog.System
	Resolver    *resolver.Resolver
	Machine     *confirmation.Machine

	Config             Config
	PublishConcurrency int
	Logger             *slog.Logger
}

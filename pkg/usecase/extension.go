package usecase

import (
	"context"
	"slices"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/analogj/capsulecd/pkg/domain/types"
)

type extensionEntry struct {
	stage  types.Stage
	prefix types.HookPrefix
	source string
}

// ApplyExtensions binds the stage entries of an extension file onto the engine.
// values is the decoded file; keys that do not name a stage are configuration and skipped.
// Nothing is registered unless every entry is allowed at scope and compiles.
func (x *Engine) ApplyExtensions(ctx context.Context, values map[string]any, scope types.Scope) error {
	entries, err := parseExtensions(values)
	if err != nil {
		return err
	}

	if scope != types.ScopeGlobal {
		for _, e := range entries {
			if e.stage.Protected() {
				return goerr.Wrap(types.ErrEngineTransformUnavailableStep,
					"stage can only be extended from the system configuration",
					goerr.V("hook_point", e.stage.HookPoint(e.prefix)), goerr.V("scope", scope))
			}
		}
	}

	hooks := make([]Hook, len(entries))
	for i, e := range entries {
		hook, err := x.compile(e.stage.HookPoint(e.prefix), e.source)
		if err != nil {
			return err
		}
		hooks[i] = hook
	}

	for i, e := range entries {
		x.AddHook(e.stage, e.prefix, hooks[i])
		ctxlog.From(ctx).Info("extension registered", "hook_point", e.stage.HookPoint(e.prefix), "scope", scope)
	}
	return nil
}

func parseExtensions(values map[string]any) ([]extensionEntry, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var entries []extensionEntry
	for _, key := range keys {
		stage, ok := types.ParseStage(key)
		if !ok {
			continue
		}

		block, ok := values[key].(map[string]any)
		if !ok {
			return nil, goerr.Wrap(types.ErrEngineTransformInvalid, "stage entry must map pre, post or override to a program",
				goerr.V("stage", key))
		}

		for _, p := range []types.HookPrefix{types.HookPre, types.HookOverride, types.HookPost} {
			raw, ok := block[string(p)]
			if !ok {
				continue
			}
			source, ok := raw.(string)
			if !ok {
				return nil, goerr.Wrap(types.ErrEngineTransformInvalid, "program must be a string",
					goerr.V("hook_point", stage.HookPoint(p)))
			}
			entries = append(entries, extensionEntry{stage: stage, prefix: p, source: source})
		}

		for name := range block {
			switch types.HookPrefix(name) {
			case types.HookPre, types.HookPost, types.HookOverride:
			default:
				return nil, goerr.Wrap(types.ErrEngineTransformInvalid, "unknown hook prefix",
					goerr.V("stage", key), goerr.V("prefix", name))
			}
		}
	}
	return entries, nil
}

package phase

import (
	"fmt"
	"regexp"
)

// Rule binds a phase to the engine call markers that identify it
type Rule struct {
	Phase    Phase
	Patterns []*regexp.Regexp
}

// Matches reports whether any pattern occurs in any frame of the stack.
func (r Rule) Matches(stack []string) bool {
	for _, frame := range stack {
		for _, re := range r.Patterns {
			if re.MatchString(frame) {
				return true
			}
		}
	}
	return false
}

// Unity player-loop markers. BehaviourManager is anchored so it does not
// also match the Fixed/Late variants.
var defaultPatterns = map[Phase][]string{
	FixedUpdate: {
		`FixedBehaviourManager`,
		`ScriptRunBehaviourFixedUpdate`,
		`FixedUpdate\.ScriptRunDelayedFixedFrameRate`,
	},
	Physics: {
		`PhysicsManager::`,
		`Physics2DManager::`,
		`physx::`,
		`PhysicsScene::Simulate`,
	},
	Update: {
		`\bBehaviourManager::Update`,
		`ScriptRunBehaviourUpdate`,
		`Update\.ScriptRunDelayedDynamicFrameRate`,
	},
	LateUpdate: {
		`LateBehaviourManager`,
		`ScriptRunBehaviourLateUpdate`,
	},
	Render: {
		`PlayerRender`,
		`RenderManager::`,
		`Camera::Render`,
		`Camera::CustomRender`,
		`ScriptableRenderContext`,
		`RenderPipelineManager`,
		`FinishFrameRendering`,
		`GfxDevice`,
		`UIEvents\.WillRenderCanvases`,
		`Canvas::SendWillRenderCanvases`,
		`CullScriptable`,
		`DrawNonBatched`,
		`PlayerSendFrameComplete`,
	},
}

// DefaultRules returns the built-in rules in priority order.
func DefaultRules() []Rule {
	rules, err := BuildRules(nil)
	if err != nil {
		panic(err)
	}
	return rules
}

// BuildRules compiles the default patterns plus extra patterns per phase,
// returned in priority order.
func BuildRules(extra map[Phase][]string) ([]Rule, error) {
	rules := make([]Rule, 0, len(Priority))
	for _, p := range Priority {
		exprs := append(append([]string{}, defaultPatterns[p]...), extra[p]...)
		rule := Rule{Phase: p, Patterns: make([]*regexp.Regexp, 0, len(exprs))}
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("invalid %s pattern %q: %w", p, expr, err)
			}
			rule.Patterns = append(rule.Patterns, re)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Classifier maps resolved stacks to phases. It is stateless after
// construction and safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// NewClassifier returns a classifier evaluating rules in the given order
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the first phase whose rule matches the stack, or Other.
func (c *Classifier) Classify(stack []string) Phase {
	for _, rule := range c.rules {
		if rule.Matches(stack) {
			return rule.Phase
		}
	}
	return Other
}

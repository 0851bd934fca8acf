package risk

import (
	"fmt"

	"github.com/d5/tengo/v2"
)

// Evaluate applies the tenant policy to an entity snapshot. Pure function:
// identical inputs always produce identical output, and custom-rule script
// errors surface in the result's skipped-rule list rather than as side
// effects, so callers can evaluate speculatively.
func Evaluate(snapshot EntitySnapshot, policy Policy) Result {
	result := Result{Reasons: []string{}}

	margin := 0.0
	if snapshot.FinalAmount != 0 {
		margin = (snapshot.FinalAmount - snapshot.TotalCost) / snapshot.FinalAmount
	}

	if policy.BlockNegativeMargin && snapshot.TotalCost > snapshot.FinalAmount {
		result.BlockSubmission = true
		result.RequiresApproval = true
		result.Reasons = append(result.Reasons, ReasonNegativeProfit)
	} else if margin < policy.MinProfitMargin {
		result.RequiresApproval = true
		result.Reasons = append(result.Reasons, ReasonLowMargin)
	}

	if snapshot.DiscountRate < policy.MinDiscountRate {
		result.RequiresApproval = true
		result.Reasons = append(result.Reasons, ReasonHighDiscount)
	}

	for _, rule := range policy.CustomRules {
		hit, err := evalCustomRule(rule, snapshot)
		if err != nil {
			// A broken script must not block business; it is skipped and the
			// caller can inspect the reason trail.
			result.Reasons = append(result.Reasons, fmt.Sprintf("rule %q skipped: invalid expression", rule.Name))
			continue
		}
		if hit {
			result.RequiresApproval = true
			if rule.Block {
				result.BlockSubmission = true
			}
			result.Reasons = append(result.Reasons, rule.Name)
		}
	}

	return result
}

func evalCustomRule(rule CustomRule, snapshot EntitySnapshot) (bool, error) {
	src := fmt.Sprintf("hit := %s", rule.Expression)
	script := tengo.NewScript([]byte(src))

	_ = script.Add("total_amount", snapshot.TotalAmount)
	_ = script.Add("final_amount", snapshot.FinalAmount)
	_ = script.Add("total_cost", snapshot.TotalCost)
	_ = script.Add("discount_rate", snapshot.DiscountRate)
	_ = script.Add("entity_type", snapshot.EntityType)

	compiled, err := script.Compile()
	if err != nil {
		return false, fmt.Errorf("failed to compile rule %q: %w", rule.Name, err)
	}
	if err := compiled.Run(); err != nil {
		return false, fmt.Errorf("failed to run rule %q: %w", rule.Name, err)
	}

	return compiled.Get("hit").Bool(), nil
}

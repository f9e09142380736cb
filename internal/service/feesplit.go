package service

import (
	"fmt"

	"talentpay/internal/apperr"
	"talentpay/internal/model"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 分账计算
// ============================================================================
//
// 金额一律用最小货币单位（分）的整数表示，费率用 decimal 精确表示，避免浮点误差。
//
//   系统费   = trunc(总额 × 系统费率)
//   导师份额 = trunc(总额 × 导师费率)
//   团队份额 = 总额 - 系统费 - 导师份额      截断产生的零头全部归团队
//
// 这样三者之和永远等于总额，不会凭空多出或少掉一分钱。
// ============================================================================

// rateTolerance 三个费率之和与 1 的允许误差
var rateTolerance = decimal.New(1, -3)

// rateScale 费率最多保留的小数位，与表字段 decimal(6,4) 一致
const rateScale = 4

// FeeRates 一组分账费率
type FeeRates struct {
	SystemFeeRate   decimal.Decimal `json:"system_fee_rate"`
	MentorShareRate decimal.Decimal `json:"mentor_share_rate"`
	TalentShareRate decimal.Decimal `json:"talent_share_rate"`
}

func RatesOf(cfg *model.FeeDistributionConfig) FeeRates {
	return FeeRates{
		SystemFeeRate:   cfg.SystemFeeRate,
		MentorShareRate: cfg.MentorShareRate,
		TalentShareRate: cfg.TalentShareRate,
	}
}

// ParseRates 从配置字符串解析费率
func ParseRates(systemFee, mentorShare, talentShare string) (FeeRates, error) {
	var rates FeeRates
	var err error
	if rates.SystemFeeRate, err = decimal.NewFromString(systemFee); err != nil {
		return FeeRates{}, fmt.Errorf("%w: system_fee_rate=%q", apperr.ErrInvalidPolicy, systemFee)
	}
	if rates.MentorShareRate, err = decimal.NewFromString(mentorShare); err != nil {
		return FeeRates{}, fmt.Errorf("%w: mentor_share_rate=%q", apperr.ErrInvalidPolicy, mentorShare)
	}
	if rates.TalentShareRate, err = decimal.NewFromString(talentShare); err != nil {
		return FeeRates{}, fmt.Errorf("%w: talent_share_rate=%q", apperr.ErrInvalidPolicy, talentShare)
	}
	return rates, nil
}

// ValidatePolicy 每个费率在 [0,1] 之间且最多 4 位小数，三者之和与 1 的误差不超过 0.001
func ValidatePolicy(rates FeeRates) error {
	one := decimal.NewFromInt(1)
	for name, r := range map[string]decimal.Decimal{
		"system_fee_rate":   rates.SystemFeeRate,
		"mentor_share_rate": rates.MentorShareRate,
		"talent_share_rate": rates.TalentShareRate,
	} {
		if r.IsNegative() || r.GreaterThan(one) {
			return fmt.Errorf("%w: %s=%s", apperr.ErrInvalidPolicy, name, r.String())
		}
		if !r.Equal(r.Truncate(rateScale)) {
			return fmt.Errorf("%w: %s=%s 超过 %d 位小数", apperr.ErrInvalidPolicy, name, r.String(), rateScale)
		}
	}

	sum := rates.SystemFeeRate.Add(rates.MentorShareRate).Add(rates.TalentShareRate)
	if sum.Sub(one).Abs().GreaterThan(rateTolerance) {
		return fmt.Errorf("%w: 费率之和为 %s", apperr.ErrInvalidPolicy, sum.String())
	}
	return nil
}

// Split 一次发放的三方金额
type Split struct {
	SystemFee   int64 `json:"system_fee"`
	MentorShare int64 `json:"mentor_share"`
	TeamShare   int64 `json:"team_share"`
}

func (s Split) Total() int64 {
	return s.SystemFee + s.MentorShare + s.TeamShare
}

// ComputeSplit 按费率拆分总额，不校验策略本身（由 ValidatePolicy 负责）
//
// 费率之和在误差范围内略大于 1 时，系统费 + 导师份额可能超过总额，
// 此时先压缩导师份额，再压缩系统费，保证每一份都不为负
func ComputeSplit(total int64, rates FeeRates) (Split, error) {
	if total <= 0 {
		return Split{}, apperr.ErrInvalidAmount
	}

	amount := decimal.NewFromInt(total)
	systemFee := amount.Mul(rates.SystemFeeRate).Truncate(0).IntPart()
	mentorShare := amount.Mul(rates.MentorShareRate).Truncate(0).IntPart()

	if systemFee < 0 {
		systemFee = 0
	}
	if mentorShare < 0 {
		mentorShare = 0
	}
	if systemFee > total {
		systemFee = total
	}
	if systemFee+mentorShare > total {
		mentorShare = total - systemFee
	}

	return Split{
		SystemFee:   systemFee,
		MentorShare: mentorShare,
		TeamShare:   total - systemFee - mentorShare,
	}, nil
}

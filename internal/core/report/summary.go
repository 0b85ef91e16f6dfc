package report

import (
	"slices"
	"strings"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/claim"
	"github.com/shopspring/decimal"
)

// PeriodStat は請求期間ごとの集計です。
type PeriodStat struct {
	Period         string
	Count          int
	ApprovedAmount decimal.Decimal
}

// Summary は請求一覧の集計結果です。
type Summary struct {
	TotalClaims         int
	ApprovedClaims      int
	RejectedClaims      int
	PendingClaims       int
	TotalApprovedAmount decimal.Decimal
	MonthlyBreakdown    []PeriodStat
	TotalLecturers      int
}

// Summarize は請求のスナップショットを集計します。入力は変更しません。
// MonthlyBreakdown は期間ラベルの昇順に並びます。
func Summarize(claims []*claim.Claim) Summary {
	summary := Summary{
		TotalApprovedAmount: decimal.Zero,
		MonthlyBreakdown:    []PeriodStat{},
	}

	index := make(map[string]int)
	for _, c := range claims {
		if c == nil {
			continue
		}
		summary.TotalClaims++

		approved := c.Status.IsApproved()
		switch {
		case approved:
			summary.ApprovedClaims++
			summary.TotalApprovedAmount = summary.TotalApprovedAmount.Add(c.TotalAmount)
		case c.Status.IsRejected():
			summary.RejectedClaims++
		case c.Status.IsPending():
			summary.PendingClaims++
		}

		i, ok := index[c.Period]
		if !ok {
			i = len(summary.MonthlyBreakdown)
			index[c.Period] = i
			summary.MonthlyBreakdown = append(summary.MonthlyBreakdown, PeriodStat{Period: c.Period, ApprovedAmount: decimal.Zero})
		}
		stat := &summary.MonthlyBreakdown[i]
		stat.Count++
		if approved {
			stat.ApprovedAmount = stat.ApprovedAmount.Add(c.TotalAmount)
		}
	}

	slices.SortFunc(summary.MonthlyBreakdown, func(a, b PeriodStat) int {
		return strings.Compare(a.Period, b.Period)
	})

	return summary
}

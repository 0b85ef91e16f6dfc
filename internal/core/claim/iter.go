package claim

import (
	"context"
	"iter"
)

// All は ListClaims をページ単位で必要な分だけ呼び出すイテレータを返します。
// 途中でエラーが発生した場合は (nil, err) を一度だけ返して終了します。
func All(ctx context.Context, uc UseCase, in ListClaimsInput) iter.Seq2[*Claim, error] {
	return func(yield func(*Claim, error) bool) {
		page := in
		for {
			result, err := uc.ListClaims(ctx, page)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, c := range result.Claims {
				if !yield(c, nil) {
					return
				}
			}

			if result.NextPageToken == "" {
				return
			}
			page.PageToken = result.NextPageToken
		}
	}
}

package repository

import "nextspay/internal/domain/catalog/model"

func modelFilter(status, keyword string) model.ProductFilter {
	return model.ProductFilter{Status: status, Keyword: keyword}
}

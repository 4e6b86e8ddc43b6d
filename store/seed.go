package store

import "github.com/maxim-sld/meditation-bot/types"

// SeedDemoCatalog loads the same catalog as migrations/00002_seed_catalog.sql.
func SeedDemoCatalog(s *MemoryStore) {
	pkg := int64(1)
	s.AddPackage(types.Package{ID: pkg, Title: "Все медитации", Description: "Полный набор медитаций", Price: 19900})
	s.AddPlan(types.SubscriptionPlan{ID: 1, Title: "1 месяц", DurationDays: 30, Price: 9900, IsActive: true})
	s.AddPlan(types.SubscriptionPlan{ID: 2, Title: "3 месяца", DurationDays: 90, Price: 24900, IsActive: true})
	s.AddContentItem(types.ContentItem{ID: 1, Title: "Дыхание", Description: "Вводная медитация", IsFree: true})
	s.AddContentItem(types.ContentItem{ID: 2, Title: "Сон", Description: "Медитация перед сном", PackageID: &pkg})
	s.AddContentItem(types.ContentItem{ID: 3, Title: "Фокус", Description: "Медитация для концентрации", PackageID: &pkg})
}

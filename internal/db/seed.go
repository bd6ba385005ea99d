package db

import (
	"errors"

	"greentera/internal/config"
	"greentera/internal/logging"
	"greentera/internal/models"
	"greentera/internal/utils"

	"gorm.io/gorm"
)

// Seed inserts the admin account, default voucher templates and starter
// education content. Existing rows are left alone.
func Seed(gdb *gorm.DB, cfg config.SeedConfig) error {
	if err := seedAdmin(gdb, cfg); err != nil {
		return err
	}
	if cfg.DemoUsers {
		if err := seedDemoUsers(gdb); err != nil {
			return err
		}
	}
	if err := seedTemplates(gdb); err != nil {
		return err
	}
	if err := seedArticles(gdb); err != nil {
		return err
	}
	return seedQuizzes(gdb)
}

func seedAdmin(gdb *gorm.DB, cfg config.SeedConfig) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	var existing models.User
	err := gdb.Where("email = ?", cfg.AdminEmail).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := utils.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	admin := models.User{
		Name:     "Admin Greentera",
		Email:    cfg.AdminEmail,
		Password: hash,
		Role:     models.RoleAdmin,
		Location: "Indonesia",
	}
	if err := gdb.Create(&admin).Error; err != nil {
		return err
	}
	logging.Info().Str("email", admin.Email).Msg("Admin user created")
	return nil
}

type demoUser struct {
	email, name, location string
	points                int
	level                 models.Level
	totalWaste            float64
	treesGrown            int
	ecoXP                 int
	stage                 models.TreeStage
}

var demoUsers = []demoUser{
	{"ahmad@example.com", "Ahmad Rizki", "Jakarta", 5420, models.LevelGold, 156.5, 12, 0, models.StageSeed},
	{"siti@example.com", "Siti Nurhaliza", "Bandung", 4850, models.LevelGold, 142.3, 10, 0, models.StageSeed},
	{"budi@example.com", "Budi Santoso", "Surabaya", 4200, models.LevelGold, 128.7, 9, 0, models.StageSeed},
	{"dewi@example.com", "Dewi Lestari", "Yogyakarta", 3100, models.LevelSilver, 98.2, 7, 0, models.StageSeed},
	{"demo@greentera.id", "Demo User", "Indonesia", 1250, models.LevelGold, 45.5, 3, 850, models.StageLarge},
}

func seedDemoUsers(gdb *gorm.DB) error {
	hash, err := utils.HashPassword("demo123")
	if err != nil {
		return err
	}
	for _, d := range demoUsers {
		u := models.User{
			Name:       d.name,
			Email:      d.email,
			Password:   hash,
			Location:   d.location,
			Role:       models.RoleUser,
			Points:     d.points,
			Level:      d.level,
			TotalWaste: d.totalWaste,
			TreesGrown: d.treesGrown,
			EcoXP:      d.ecoXP,
			TreeStage:  d.stage,
		}
		if err := gdb.Where(models.User{Email: d.email}).FirstOrCreate(&u).Error; err != nil {
			return err
		}
	}
	logging.Info().Int("count", len(demoUsers)).Msg("Demo users ensured")
	return nil
}

func seedTemplates(gdb *gorm.DB) error {
	var count int64
	gdb.Model(&models.VoucherTemplate{}).Count(&count)
	if count > 0 {
		return nil
	}

	templates := []models.VoucherTemplate{
		{Name: "Pulsa 10K", Description: "Pulsa semua operator senilai Rp 10.000", Icon: "📱", Category: "PULSA", Nominal: 10000, PointsCost: 100, Stock: models.UnlimitedStock, IsActive: true},
		{Name: "Pulsa 20K", Description: "Pulsa semua operator senilai Rp 20.000", Icon: "📱", Category: "PULSA", Nominal: 20000, PointsCost: 200, Stock: models.UnlimitedStock, IsActive: true},
		{Name: "Pulsa 50K", Description: "Pulsa semua operator senilai Rp 50.000", Icon: "📱", Category: "PULSA", Nominal: 50000, PointsCost: 500, Stock: 100, IsActive: true},
		{Name: "Diskon 10%", Description: "Diskon 10% di mitra Greentera", Icon: "🏷️", Category: "DISCOUNT", Nominal: 10, PointsCost: 50, Stock: models.UnlimitedStock, IsActive: true},
		{Name: "Diskon 25%", Description: "Diskon 25% di mitra Greentera", Icon: "🏷️", Category: "DISCOUNT", Nominal: 25, PointsCost: 100, Stock: models.UnlimitedStock, IsActive: true},
		{Name: "Diskon 50%", Description: "Diskon 50% di mitra Greentera", Icon: "🏷️", Category: "DISCOUNT", Nominal: 50, PointsCost: 200, Stock: 50, IsActive: true},
	}
	for i := range templates {
		if err := gdb.Create(&templates[i]).Error; err != nil {
			logging.Error().Err(err).Str("template", templates[i].Name).Msg("Failed to create voucher template")
		}
	}
	logging.Info().Int("count", len(templates)).Msg("Voucher templates seeded")
	return nil
}

func seedArticles(gdb *gorm.DB) error {
	var count int64
	gdb.Model(&models.EducationArticle{}).Count(&count)
	if count > 0 {
		return nil
	}

	articles := []models.EducationArticle{
		{
			Title:    "Cara Memilah Sampah yang Benar",
			Summary:  "Panduan memisahkan sampah organik, plastik, logam dan kertas.",
			Category: "Pemilahan Sampah",
			Content: `# Cara Memilah Sampah yang Benar

## Jenis-Jenis Sampah

1. **Organik**: sisa makanan, kulit buah, daun kering
2. **Plastik**: botol, kemasan makanan, kantong plastik
3. **Logam**: kaleng minuman, tutup botol logam, aluminium foil
4. **Kertas**: kardus, koran, majalah

## Tips

- Siapkan tempat sampah terpisah
- Bersihkan kemasan sebelum dibuang
- Pipihkan kemasan untuk menghemat ruang
`,
		},
		{
			Title:    "Dampak Sampah Plastik terhadap Lingkungan",
			Summary:  "Plastik butuh ratusan tahun untuk terurai.",
			Category: "Dampak Lingkungan",
			Content: `# Dampak Sampah Plastik terhadap Lingkungan

- **500 tahun** waktu plastik untuk terurai
- **8 juta ton** plastik masuk ke laut setiap tahun

## Solusi

1. Kurangi plastik sekali pakai
2. Gunakan tas belanja reusable
3. Daur ulang dengan benar
`,
		},
		{
			Title:    "Manfaat Daur Ulang Sampah",
			Summary:  "Daur ulang menghemat sumber daya dan membuka lapangan kerja.",
			Category: "Daur Ulang",
			Content: `# Manfaat Daur Ulang Sampah

| Bahan | Contoh | Hasil Daur Ulang |
|-------|--------|------------------|
| Kertas | Koran, kardus | Kertas baru |
| Plastik | Botol PET | Serat polyester |
| Logam | Kaleng aluminium | Kaleng baru |
`,
		},
	}
	for i := range articles {
		if err := gdb.Create(&articles[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedQuizzes(gdb *gorm.DB) error {
	var count int64
	gdb.Model(&models.EducationQuiz{}).Count(&count)
	if count > 0 {
		return nil
	}

	quizzes := []models.EducationQuiz{
		{Question: "Sampah kulit pisang termasuk jenis sampah apa?", Options: []string{"Plastik", "Organik", "Logam", "B3"}, CorrectAnswer: "Organik", Category: "Pemilahan Sampah", PointsReward: 10},
		{Question: "Berapa lama waktu yang dibutuhkan plastik untuk terurai?", Options: []string{"10 tahun", "50 tahun", "100 tahun", "500 tahun"}, CorrectAnswer: "500 tahun", Category: "Dampak Lingkungan", PointsReward: 15},
		{Question: "Warna tempat sampah untuk sampah organik biasanya adalah?", Options: []string{"Merah", "Biru", "Hijau", "Kuning"}, CorrectAnswer: "Hijau", Category: "Pemilahan Sampah", PointsReward: 10},
		{Question: "Apa manfaat utama dari daur ulang kertas?", Options: []string{"Menambah sampah", "Mengurangi penebangan pohon", "Membuat udara kotor", "Tidak ada manfaat"}, CorrectAnswer: "Mengurangi penebangan pohon", Category: "Daur Ulang", PointsReward: 10},
		{Question: "Kaleng minuman aluminium termasuk jenis sampah?", Options: []string{"Organik", "Plastik", "Logam", "Kertas"}, CorrectAnswer: "Logam", Category: "Pemilahan Sampah", PointsReward: 10},
	}
	for i := range quizzes {
		if err := gdb.Create(&quizzes[i]).Error; err != nil {
			return err
		}
	}
	logging.Info().Msg("Education content seeded")
	return nil
}

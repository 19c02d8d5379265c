package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	DBHost                  string `mapstructure:"DB_HOST"`
	DBPort                  string `mapstructure:"DB_PORT"`
	DBUser                  string `mapstructure:"DB_USER"`
	DBPassword              string `mapstructure:"DB_PASSWORD"`
	DBName                  string `mapstructure:"DB_NAME"`
	RedisAddr               string `mapstructure:"REDIS_ADDR"`
	HTTPPort                string `mapstructure:"HTTP_PORT"`
	ActiveEnvironment       string `mapstructure:"ACTIVE_ENVIRONMENT"`
	TestStripeWebhookSecret string `mapstructure:"TEST_STRIPE_WEBHOOK_SECRET"`
	ProdStripeWebhookSecret string `mapstructure:"PROD_STRIPE_WEBHOOK_SECRET"`
	ServiceTokenSecret      string `mapstructure:"SERVICE_TOKEN_SECRET"`
}

func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	// Явный биндинг, чтобы Viper видел переменные и без файла
	viper.BindEnv("DB_HOST")
	viper.BindEnv("DB_PORT")
	viper.BindEnv("DB_USER")
	viper.BindEnv("DB_PASSWORD")
	viper.BindEnv("DB_NAME")
	viper.BindEnv("REDIS_ADDR")
	viper.BindEnv("HTTP_PORT")
	viper.BindEnv("ACTIVE_ENVIRONMENT")
	viper.BindEnv("TEST_STRIPE_WEBHOOK_SECRET")
	viper.BindEnv("PROD_STRIPE_WEBHOOK_SECRET")
	viper.BindEnv("SERVICE_TOKEN_SECRET")

	// Файла может не быть — тогда работаем на ENV
	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}

package entities

import (
	"time"

	"github.com/diwise/entity-mapper/pkg/types"
	"github.com/diwise/entity-mapper/pkg/types/properties"
	"github.com/diwise/entity-mapper/pkg/types/relationships"
)

func Boolean(name string, value bool) EntityDecoratorFunc {
	return P(name, properties.NewBooleanProperty(value))
}

func DateTime(name string, value time.Time) EntityDecoratorFunc {
	return P(name, properties.NewDateTimeProperty(value))
}

func Integer(name string, value int64) EntityDecoratorFunc {
	return P(name, properties.NewIntegerProperty(value))
}

func Number(name string, value float64) EntityDecoratorFunc {
	return P(name, properties.NewNumberProperty(value))
}

func Text(name string, value string) EntityDecoratorFunc {
	return P(name, properties.NewTextProperty(value))
}

func TextList(name string, value []string) EntityDecoratorFunc {
	return P(name, properties.NewTextListProperty(value))
}

func Ref(name string, target types.Entity) EntityDecoratorFunc {
	return R(name, relationships.NewToOne(target))
}

func Refs(name, targetType string, targets ...types.Entity) EntityDecoratorFunc {
	return R(name, relationships.NewToMany(targetType, targets))
}

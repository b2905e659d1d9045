package topology

import (
	"github.com/lex00/ecs-devsecops-go/internal/stack"
	"github.com/lex00/ecs-devsecops-go/intrinsics"
	"github.com/lex00/ecs-devsecops-go/resources/codecommit"
	"github.com/lex00/ecs-devsecops-go/resources/ecr"
)

// registry declares the image repository. It is retained so that deleting
// the stack never deletes pushed images.
func (b *builder) registry() {
	b.add(ImageRepository, ecr.Repository{}, stack.Retain())
}

// imageRepositoryURI is the registry URI the build pushes to.
func (b *builder) imageRepositoryURI() intrinsics.Sub {
	return intrinsics.Sub{String: "${AWS::AccountId}.dkr.ecr.${AWS::Region}.${AWS::URLSuffix}/${" + ImageRepository + "}"}
}

func (b *builder) source() {
	name := b.cfg.Source.RepositoryName
	b.add(SourceRepository, codecommit.Repository{
		RepositoryName:        name,
		RepositoryDescription: name,
	})
}
